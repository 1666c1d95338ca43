package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"elfMap/elfmem"

	"golang.org/x/sys/unix"
)

// TypeDbg is a stopped ptrace inferior. It only inspects: memory reads and
// the /proc/pid/maps range table, no execution control beyond the initial
// stop.
type TypeDbg struct {
	pid      int
	isAttach bool
	pt       *ptraceThread
	maps     []*proc
	ranges   *procRanges
}

type proc struct {
	start   uint64
	end     uint64
	r, w, x bool
	offset  uint64
	path    string
}

var mapsLine = regexp.MustCompile(`^([0-9a-f]+)-([0-9a-f]+)\s+([rwxps-]+)\s+([0-9a-f]+)\s+([0-9a-f]+:[0-9a-f]+)\s+(\d+)(?:\s+(.*))?$`)

func parseMapsLine(line string) (*proc, bool) {
	match := mapsLine.FindStringSubmatch(line)
	if len(match) < 7 {
		return nil, false
	}
	start, _ := strconv.ParseUint(match[1], 16, 64)
	end, _ := strconv.ParseUint(match[2], 16, 64)
	offset, _ := strconv.ParseUint(match[4], 16, 64)
	path := ""
	if len(match) > 7 {
		path = strings.TrimSpace(match[7])
	}

	return &proc{
		start:  start,
		end:    end,
		r:      strings.Contains(match[3], "r"),
		w:      strings.Contains(match[3], "w"),
		x:      strings.Contains(match[3], "x"),
		offset: offset,
		path:   path,
	}, true
}

// loadMaps refreshes the range table from /proc/pid/maps. The kernel keeps
// the entries sorted and non-overlapping.
func (dbger *TypeDbg) loadMaps() error {
	fileName := fmt.Sprintf("/proc/%d/maps", dbger.pid)
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	dbger.maps = dbger.maps[:0]
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if p, ok := parseMapsLine(scanner.Text()); ok {
			dbger.maps = append(dbger.maps, p)
		}
	}

	ranges := make([]*elfmem.Range, 0, len(dbger.maps))
	for _, p := range dbger.maps {
		ranges = append(ranges, &elfmem.Range{Start: p.start, End: p.end, Objfile: p.path})
	}
	dbger.ranges = &procRanges{ranges: ranges}

	return scanner.Err()
}

func (dbger *TypeDbg) RangeTable() elfmem.RangeTable {
	if dbger.ranges == nil {
		return nil
	}
	return dbger.ranges
}

func (dbger *TypeDbg) Description() string {
	return fmt.Sprintf("pid %d", dbger.pid)
}

func (dbger *TypeDbg) IsLinux() bool { return true }

func (dbger *TypeDbg) isProcessAlive() bool {
	if dbger.pid <= 0 {
		return false
	}
	_, err := os.Stat(fmt.Sprintf("/proc/%d", dbger.pid))
	return err == nil
}

func (dbger *TypeDbg) isProcessTraced() bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", dbger.pid))
	if err != nil {
		return false
	}
	return !strings.Contains(string(data), "TracerPid:\t0")
}

func Attach(pid int) (*TypeDbg, error) {
	dbger := &TypeDbg{
		pid:      pid,
		isAttach: true,
	}

	if !dbger.isProcessAlive() {
		return nil, fmt.Errorf("process %d does not exist", pid)
	}
	if dbger.isProcessTraced() {
		return nil, fmt.Errorf("process %d is already being traced", pid)
	}

	dbger.pt = newPtraceThread()
	detach := func() {
		_ = onThreadErr(dbger.pt, func() error {
			return unix.PtraceDetach(pid)
		})
		dbger.pt.stop()
	}

	err := onThreadErr(dbger.pt, func() error {
		return unix.PtraceAttach(pid)
	})
	if err != nil {
		dbger.pt.stop()
		return nil, dbger.formatPtraceError("attach", err)
	}

	if err := dbger.wait(); err != nil {
		detach()
		return nil, err
	}

	Printf("attached to PID:%d\n", pid)

	if err := dbger.loadMaps(); err != nil {
		detach()
		return nil, err
	}
	return dbger, nil
}

func (dbger *TypeDbg) wait() error {
	var ws unix.WaitStatus
	err := onThreadErr(dbger.pt, func() error {
		_, err := unix.Wait4(dbger.pid, &ws, 0, nil)
		return err
	})
	if err != nil {
		return dbger.formatPtraceError("wait", err)
	}
	if ws.Exited() {
		return fmt.Errorf("process %d exited with status %d", dbger.pid, ws.ExitStatus())
	}
	return nil
}

func (dbger *TypeDbg) Close() error {
	if dbger.pid <= 0 {
		return errors.New("invalid PID")
	}

	err := onThreadErr(dbger.pt, func() error {
		return unix.PtraceDetach(dbger.pid)
	})
	dbger.pt.stop()
	if err != nil {
		return err
	}

	Printf("detached from PID:%d\n", dbger.pid)
	return nil
}

func (dbger *TypeDbg) formatPtraceError(operation string, err error) error {
	if err == unix.ESRCH {
		return fmt.Errorf("%s failed: process %d does not exist or exited", operation, dbger.pid)
	}
	if err == unix.EPERM {
		return fmt.Errorf("%s failed: permission denied (check ptrace_scope)", operation)
	}
	if err == unix.EBUSY {
		return fmt.Errorf("%s failed: process is busy", operation)
	}
	return fmt.Errorf("%s failed: %v", operation, err)
}

// procRanges adapts the parsed maps to the range-table lookup the
// reconstruction core consumes.
type procRanges struct {
	ranges []*elfmem.Range
}

func (t *procRanges) Find(addr uint64) *elfmem.Range {
	idx := sort.Search(len(t.ranges), func(i int) bool {
		return t.ranges[i].End > addr
	})
	if idx < len(t.ranges) && t.ranges[idx].Contains(addr) {
		return t.ranges[idx]
	}
	return nil
}

func (t *procRanges) Ranges() []*elfmem.Range {
	return t.ranges
}
