package sandbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	root := t.TempDir()
	sb, err := New(Config{RootDir: root, AutoApprove: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sb
}

func TestResolvePath_EscapingRootIsRejected(t *testing.T) {
	sb := newTestSandbox(t)

	_, err := sb.ResolvePath("../../etc/passwd")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Code != ErrPathViolation {
		t.Fatalf("expected path_violation, got %v", err)
	}
	if sb.IsPathAllowed("../../etc/passwd") {
		t.Fatal("IsPathAllowed should be false for escaping path")
	}
}

func TestResolvePath_InsideRootIsAllowed(t *testing.T) {
	sb := newTestSandbox(t)

	resolved, err := sb.ResolvePath("subdir/file.txt")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	want := filepath.Join(sb.RootDir(), "subdir/file.txt")
	if resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if !sb.IsPathAllowed("subdir/file.txt") {
		t.Fatal("IsPathAllowed should be true for path inside root")
	}
}

func TestValidateCommand_BannedRejectedEvenWithAutoApprove(t *testing.T) {
	root := t.TempDir()
	sb, err := New(Config{RootDir: root, AutoApprove: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	v := sb.ValidateCommand("rm -rf /")
	if v.Allowed {
		t.Fatal("banned command must be rejected even when autoApprove=true")
	}
}

func TestValidateCommand_SafeReadOnlyBypassesPermission(t *testing.T) {
	sb := newTestSandbox(t)

	v := sb.ValidateCommand("ls -la")
	if !v.Allowed || v.NeedsPermission {
		t.Fatalf("expected safe read-only command to bypass permission, got %+v", v)
	}
}

func TestValidateCommand_DefaultNeedsPermission(t *testing.T) {
	sb := newTestSandbox(t)

	v := sb.ValidateCommand("npm install")
	if !v.Allowed || !v.NeedsPermission {
		t.Fatalf("expected default command to be allowed but require permission, got %+v", v)
	}
}

func TestRequestPermission_GrantResolvesWaiter(t *testing.T) {
	sb := newTestSandbox(t)
	var seenID string
	sb.SetPermissionHandler(func(ctx context.Context, req models.PermissionRequest) {
		seenID = req.ID
		go sb.GrantPermission(req.ID, false)
	})

	granted, err := sb.RequestPermission(context.Background(), "shell", "exec", "run npm install", "", "npm install")
	if err != nil {
		t.Fatalf("RequestPermission: %v", err)
	}
	if !granted {
		t.Fatal("expected grant to resolve the rendezvous as granted")
	}
	if seenID == "" {
		t.Fatal("handler should have observed the request id")
	}
}

func TestRequestPermission_PersistentGrantSkipsHandlerNextTime(t *testing.T) {
	sb := newTestSandbox(t)
	calls := 0
	sb.SetPermissionHandler(func(ctx context.Context, req models.PermissionRequest) {
		calls++
		go sb.GrantPermission(req.ID, true)
	})

	granted, err := sb.RequestPermission(context.Background(), "fs", "write", "write config.json", "config.json", "")
	if err != nil || !granted {
		t.Fatalf("first request should be granted: granted=%v err=%v", granted, err)
	}
	if calls != 1 {
		t.Fatalf("handler should have been invoked once, got %d", calls)
	}

	granted2, err := sb.RequestPermission(context.Background(), "fs", "write", "write config.json", "config.json", "")
	if err != nil || !granted2 {
		t.Fatalf("second request should be granted via persistent match: granted=%v err=%v", granted2, err)
	}
	if calls != 1 {
		t.Fatalf("handler must not be invoked again after a persistent grant, got %d calls", calls)
	}
}

func TestRequestPermission_DenyResolvesWaiter(t *testing.T) {
	sb := newTestSandbox(t)
	sb.SetPermissionHandler(func(ctx context.Context, req models.PermissionRequest) {
		go sb.DenyPermission(req.ID)
	})

	granted, err := sb.RequestPermission(context.Background(), "shell", "exec", "run rm", "", "rm file")
	if err != nil {
		t.Fatalf("RequestPermission: %v", err)
	}
	if granted {
		t.Fatal("expected denial")
	}
}

func TestRequestPermission_DoubleResolutionIsNoop(t *testing.T) {
	sb := newTestSandbox(t)
	sb.SetPermissionHandler(func(ctx context.Context, req models.PermissionRequest) {
		go func() {
			sb.GrantPermission(req.ID, false)
			sb.DenyPermission(req.ID) // should be a no-op
		}()
	})

	granted, err := sb.RequestPermission(context.Background(), "shell", "exec", "desc", "", "cmd")
	if err != nil || !granted {
		t.Fatalf("expected grant to win: granted=%v err=%v", granted, err)
	}
}

func TestValidateNetwork_Blocked(t *testing.T) {
	root := t.TempDir()
	sb, _ := New(Config{RootDir: root})
	if err := sb.ValidateNetwork("example.com"); err == nil {
		t.Fatal("expected network_blocked error")
	}
}

func TestValidateNetwork_RestrictedAllowsSubdomain(t *testing.T) {
	root := t.TempDir()
	sb, _ := New(Config{RootDir: root, Network: NetworkRestricted, AllowedHosts: []string{"example.com"}})

	if err := sb.ValidateNetwork("api.example.com"); err != nil {
		t.Fatalf("expected subdomain match to be allowed, got %v", err)
	}
	if err := sb.ValidateNetwork("evil.com"); err == nil {
		t.Fatal("expected non-matching host to be blocked")
	}
}

func TestRequestPermission_TimesOutUnderShortTimeout(t *testing.T) {
	root := t.TempDir()
	sb, _ := New(Config{RootDir: root, PermissionTimeout: 20 * time.Millisecond})
	// No handler bound: request will sit pending until timeout.
	granted, err := sb.RequestPermission(context.Background(), "shell", "exec", "desc", "", "cmd")
	if granted || err == nil {
		t.Fatalf("expected timeout denial, got granted=%v err=%v", granted, err)
	}
}
