package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ServInfo advertises a running server so other invocations can reach it.
type ServInfo struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
	PID  int    `json:"pid"`
}

// BaseURL returns the http root of the server.
func (i ServInfo) BaseURL() string {
	return "http://" + net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// WriteInfo writes info to path, replacing any previous file.
func WriteInfo(path string, info ServInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing server info: %w", err)
	}
	return os.Rename(tmp, path)
}

// ErrNotRunning is returned when no server info file exists.
var ErrNotRunning = errors.New("proctopo server is not running")

// ReadInfo loads the info file at path.
func ReadInfo(path string) (ServInfo, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ServInfo{}, ErrNotRunning
	}
	if err != nil {
		return ServInfo{}, err
	}
	var info ServInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ServInfo{}, fmt.Errorf("parsing server info %s: %w", path, err)
	}
	return info, nil
}

// RemoveInfo deletes the info file; a missing file is not an error.
func RemoveInfo(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
