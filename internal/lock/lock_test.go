package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := PathFor(filepath.Join(t.TempDir(), "out"))

	if err := Acquire(path); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	held, pid, err := IsHeld(path)
	if err != nil {
		t.Fatalf("IsHeld: %v", err)
	}
	if !held || pid != os.Getpid() {
		t.Errorf("IsHeld = %v, %d; want true, %d", held, pid, os.Getpid())
	}

	// re-acquiring from the same process is allowed
	if err := Acquire(path); err != nil {
		t.Errorf("second Acquire: %v", err)
	}

	if err := Release(path); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if held, _, _ := IsHeld(path); held {
		t.Error("lock still held after Release")
	}
	if err := Release(path); err != nil {
		t.Errorf("Release of missing lock: %v", err)
	}
}

func TestAcquireHeldByOtherProcess(t *testing.T) {
	path := PathFor(t.TempDir())
	// the parent process is alive for the duration of the test
	ppid := os.Getppid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(ppid)), 0o644); err != nil {
		t.Fatal(err)
	}

	err := Acquire(path)
	if err == nil {
		t.Fatal("expected error for lock held by a running process")
	}
	if !strings.Contains(err.Error(), strconv.Itoa(ppid)) {
		t.Errorf("error should name the holding PID: %v", err)
	}
}

func TestAcquireGarbageLock(t *testing.T) {
	path := PathFor(t.TempDir())
	if err := os.WriteFile(path, []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Acquire(path); err != nil {
		t.Fatalf("Acquire over unreadable lock: %v", err)
	}
	if held, _, _ := IsHeld(path); !held {
		t.Error("expected lock to be held after takeover")
	}
}
