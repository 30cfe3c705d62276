package topology

import (
	"fmt"

	"github.com/iamgilwell/proctopo/internal/query"
)

// Build turns a flat record list into a forest and associates each process
// with its first socket. A duplicate or non-positive pid fails the whole
// build; missing parents and cycles are resolved locally.
func Build(records []query.ProcessRecord, sockets []query.SocketRecord) (*Forest, error) {
	f := &Forest{
		nodes: make(map[int]*Node, len(records)),
		order: make([]int, 0, len(records)),
	}

	for _, r := range records {
		if r.PID <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidProcessID, r.PID)
		}
		if _, dup := f.nodes[r.PID]; dup {
			return nil, &DuplicateProcessIDError{PID: r.PID}
		}
		f.nodes[r.PID] = &Node{PID: r.PID, Record: r}
		f.order = append(f.order, r.PID)
	}

	byParent := make(map[int][]int)
	for _, pid := range f.order {
		if ppid := f.nodes[pid].Record.ParentPID; ppid > 0 {
			byParent[ppid] = append(byParent[ppid], pid)
		}
	}

	assigned := make(map[int]bool, len(f.nodes))
	for _, pid := range f.order {
		r := f.nodes[pid].Record
		switch {
		case !r.HasParent():
			f.addRoot(pid, byParent, assigned)
		case !f.Has(r.ParentPID):
			ph := r.ParentPID
			f.nodes[ph] = &Node{PID: ph, Record: query.ProcessRecord{PID: ph}, Placeholder: true}
			f.order = append(f.order, ph)
			f.placeholders++
			f.addRoot(ph, byParent, assigned)
		}
	}

	// Whatever is left sits on or below a parent cycle.
	for _, pid := range f.order {
		if assigned[pid] {
			continue
		}
		root := f.cycleEntry(pid)
		f.nodes[root].CycleBroken = true
		f.cyclesBroken++
		f.addRoot(root, byParent, assigned)
	}

	f.associateSockets(sockets)
	return f, nil
}

func (f *Forest) addRoot(pid int, byParent map[int][]int, assigned map[int]bool) {
	f.roots = append(f.roots, pid)
	assigned[pid] = true

	stack := []int{pid}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := f.nodes[cur]
		for _, child := range byParent[cur] {
			if assigned[child] {
				continue
			}
			assigned[child] = true
			node.Children = append(node.Children, child)
			f.nodes[child].Parent = cur
			stack = append(stack, child)
		}
	}
}

// cycleEntry follows parent links from pid until one repeats and returns the
// repeated pid, which lies on the cycle.
func (f *Forest) cycleEntry(pid int) int {
	seen := map[int]bool{}
	cur := pid
	for !seen[cur] {
		seen[cur] = true
		cur = f.nodes[cur].Record.ParentPID
	}
	return cur
}

func (f *Forest) associateSockets(sockets []query.SocketRecord) {
	for i := range sockets {
		s := &sockets[i]
		for _, pid := range s.PIDs {
			n, ok := f.nodes[pid]
			if !ok || n.Placeholder {
				continue
			}
			if n.Socket == nil {
				n.Socket = s
			}
			n.SocketCount++
		}
	}
}
