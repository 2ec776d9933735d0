package launcher

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
)

// fakeSystem records every process-level action the launcher takes.
type fakeSystem struct {
	interpreters map[string]string // name -> resolved path
	importable   bool
	installErr   error
	execErr      error

	runs     [][]string
	installs [][]string
	chdirs   []string
	execArgv []string
}

func (f *fakeSystem) apply(l *Launcher) {
	l.lookPath = func(name string) (string, error) {
		if path, ok := f.interpreters[name]; ok {
			return path, nil
		}
		return "", exec.ErrNotFound
	}
	l.run = func(cmd *exec.Cmd) error {
		f.runs = append(f.runs, cmd.Args)
		if len(cmd.Args) >= 3 && cmd.Args[1] == "-c" {
			if f.importable {
				return nil
			}
			return errors.New("ModuleNotFoundError")
		}
		f.installs = append(f.installs, cmd.Args)
		return f.installErr
	}
	l.chdir = func(dir string) error {
		f.chdirs = append(f.chdirs, dir)
		return nil
	}
	l.execve = func(argv0 string, argv, envv []string) error {
		f.execArgv = argv
		return f.execErr
	}
}

func newTestLauncher(t *testing.T, sys *fakeSystem) *Launcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	l := New(cfg)
	sys.apply(l)
	return l
}

func TestRun_NoInterpreter(t *testing.T) {
	sys := &fakeSystem{interpreters: map[string]string{}}
	l := newTestLauncher(t, sys)

	err := l.Run()
	if !errors.Is(err, ErrInterpreterMissing) {
		t.Fatalf("expected ErrInterpreterMissing, got %v", err)
	}
	if len(sys.installs) != 0 {
		t.Errorf("installer must not run without an interpreter, ran %d times", len(sys.installs))
	}
	if sys.execArgv != nil {
		t.Errorf("server must not launch without an interpreter, got argv %v", sys.execArgv)
	}
}

func TestRun_DependencyAlreadyImportable(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python3": "/usr/bin/python3"},
		importable:   true,
	}
	l := newTestLauncher(t, sys)

	if err := l.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sys.installs) != 0 {
		t.Errorf("installer must not run when dependency is importable, ran %d times", len(sys.installs))
	}
}

func TestRun_DependencyMissing_InstallsOnce(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python3": "/usr/bin/python3"},
	}
	l := newTestLauncher(t, sys)

	if err := l.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sys.installs) != 1 {
		t.Fatalf("expected exactly one install invocation, got %d", len(sys.installs))
	}
	args := strings.Join(sys.installs[0], " ")
	if !strings.Contains(args, "pip install -r") || !strings.Contains(args, "requirements.txt") {
		t.Errorf("install must target the manifest, got: %s", args)
	}
}

func TestRun_InstallFailureIsNotFatal(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python3": "/usr/bin/python3"},
		installErr:   errors.New("pip exploded"),
	}
	l := newTestLauncher(t, sys)

	if err := l.Run(); err != nil {
		t.Fatalf("install failure must not abort the launch: %v", err)
	}
	if sys.execArgv == nil {
		t.Fatal("server was never launched after failed install")
	}
}

func TestRun_ChangesToAppDirBeforeHandoff(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python3": "/usr/bin/python3"},
		importable:   true,
	}
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	l := New(cfg)
	sys.apply(l)

	if err := l.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sys.chdirs) != 1 || sys.chdirs[0] != cfg.Dir {
		t.Errorf("expected chdir to %s, got %v", cfg.Dir, sys.chdirs)
	}
}

func TestRun_ChdirFailureIsFatal(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python3": "/usr/bin/python3"},
		importable:   true,
	}
	l := newTestLauncher(t, sys)
	l.chdir = func(string) error { return errors.New("permission denied") }

	err := l.Run()
	if err == nil {
		t.Fatal("expected error when application directory is unreachable")
	}
	if sys.execArgv != nil {
		t.Errorf("server must not launch after failed chdir, got argv %v", sys.execArgv)
	}
}

func TestRun_HandoffArguments(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python3": "/usr/bin/python3"},
		importable:   true,
	}
	l := newTestLauncher(t, sys)

	if err := l.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	argv := strings.Join(sys.execArgv, " ")
	for _, want := range []string{"-m uvicorn main:app", "--reload", "--host 0.0.0.0", "--port 8000"} {
		if !strings.Contains(argv, want) {
			t.Errorf("handoff argv missing %q: %s", want, argv)
		}
	}
}

func TestInterpreter_FallsBackToPython(t *testing.T) {
	sys := &fakeSystem{
		interpreters: map[string]string{"python": "/usr/bin/python"},
	}
	l := newTestLauncher(t, sys)

	python, err := l.interpreter()
	if err != nil {
		t.Fatalf("interpreter resolution failed: %v", err)
	}
	if python != "/usr/bin/python" {
		t.Errorf("expected /usr/bin/python, got %s", python)
	}
}

func TestInterpreter_PythonCommandOverride(t *testing.T) {
	t.Setenv("PYTHON_COMMAND", "python3.12")
	sys := &fakeSystem{
		interpreters: map[string]string{
			"python3.12": "/opt/python3.12/bin/python3.12",
			"python3":    "/usr/bin/python3",
		},
	}
	l := newTestLauncher(t, sys)

	python, err := l.interpreter()
	if err != nil {
		t.Fatalf("interpreter resolution failed: %v", err)
	}
	if python != "/opt/python3.12/bin/python3.12" {
		t.Errorf("PYTHON_COMMAND was ignored, got %s", python)
	}
}
