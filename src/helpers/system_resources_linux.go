//go:build linux

package helpers

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// GetTotalSystemMemoryMB returns the physical memory in MB, lowered to the
// cgroup v2 limit when the process runs inside a constrained container.
func GetTotalSystemMemoryMB() int {
	total := memInfoTotalMB()
	if limit := cgroupLimitMB(); limit > 0 && (total == 0 || limit < total) {
		return limit
	}
	return total
}

func memInfoTotalMB() int {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.Atoi(fields[1])
				if err == nil {
					return kb / 1024
				}
			}
		}
	}
	return 0
}

func cgroupLimitMB() int {
	raw, err := os.ReadFile("/sys/fs/cgroup/memory.max")
	if err != nil {
		return 0
	}
	v := strings.TrimSpace(string(raw))
	if v == "max" {
		return 0
	}
	b, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return int(b / 1024 / 1024)
}
