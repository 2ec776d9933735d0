// Package launcher boots the ETHANI application server: it verifies that a
// Python interpreter is available, makes a best-effort attempt to satisfy the
// dependency manifest, moves into the application directory and replaces the
// current process with the uvicorn server.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// ErrInterpreterMissing is returned when no Python interpreter can be
// resolved on the execution PATH.
var ErrInterpreterMissing = errors.New("no python interpreter found on PATH")

// Config describes what the launcher starts and where.
type Config struct {
	// Interpreter forces a specific interpreter command. When empty the
	// launcher checks the PYTHON_COMMAND environment variable, then
	// python3, then python.
	Interpreter string

	// Module is the importable module whose presence proves the dependency
	// manifest is satisfied.
	Module string

	// Manifest is the pip requirements file, resolved against Dir when
	// relative.
	Manifest string

	// Dir is the application directory. When empty the directory of the
	// running executable is used.
	Dir string

	// App is the ASGI application spec passed to uvicorn.
	App string

	Host   string
	Port   int
	Reload bool
}

// DefaultConfig returns the stock ETHANI server launch configuration.
func DefaultConfig() Config {
	return Config{
		Module:   "uvicorn",
		Manifest: "requirements.txt",
		App:      "main:app",
		Host:     "0.0.0.0",
		Port:     8000,
		Reload:   true,
	}
}

// Launcher runs the startup sequence. The exec-family functions are fields so
// tests can observe the sequence without touching the host system.
type Launcher struct {
	cfg Config

	lookPath func(string) (string, error)
	run      func(*exec.Cmd) error
	chdir    func(string) error
	execve   func(argv0 string, argv, envv []string) error
}

// New creates a Launcher for the given configuration.
func New(cfg Config) *Launcher {
	return &Launcher{
		cfg:      cfg,
		lookPath: exec.LookPath,
		run:      (*exec.Cmd).Run,
		chdir:    os.Chdir,
		execve:   execReplace,
	}
}

// Run executes the startup sequence: interpreter check, dependency check,
// working-directory fix-up, server handoff. On success it never returns
// because the process image has been replaced.
func (l *Launcher) Run() error {
	python, err := l.interpreter()
	if err != nil {
		return err
	}
	GetZlog().Info().Str("interpreter", python).Msg("interpreter resolved")

	dir, err := l.appDir()
	if err != nil {
		return fmt.Errorf("cannot determine application directory: %w", err)
	}

	// Install failures are deliberately not fatal: the server reports its
	// own import error, which is more useful than a pip exit code.
	l.ensureDependencies(python, dir)

	if err := l.chdir(dir); err != nil {
		return fmt.Errorf("cannot enter application directory %s: %w", dir, err)
	}

	return l.handoff(python)
}

// interpreter resolves the Python command, preferring PYTHON_COMMAND, then
// python3, then python.
func (l *Launcher) interpreter() (string, error) {
	candidates := []string{"python3", "python"}
	if l.cfg.Interpreter != "" {
		candidates = []string{l.cfg.Interpreter}
	} else if pythonCmd := os.Getenv("PYTHON_COMMAND"); pythonCmd != "" {
		GetZlog().Info().Str("cmd", pythonCmd).Msg("using PYTHON_COMMAND override")
		candidates = append([]string{pythonCmd}, candidates...)
	}

	for _, name := range candidates {
		if path, err := l.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrInterpreterMissing
}

// ensureDependencies checks that cfg.Module is importable and, if not, runs
// pip against the manifest. Best effort: the result of the install is not
// verified.
func (l *Launcher) ensureDependencies(python, dir string) {
	check := exec.Command(python, "-c", "import "+l.cfg.Module)
	if err := l.run(check); err == nil {
		GetZlog().Info().Str("module", l.cfg.Module).Msg("dependencies already satisfied")
		return
	}

	manifest := l.cfg.Manifest
	if !filepath.IsAbs(manifest) {
		manifest = filepath.Join(dir, manifest)
	}
	GetZlog().Info().Str("manifest", manifest).Msg("installing dependencies")

	install := exec.Command(python, "-m", "pip", "install", "-r", manifest)
	install.Stdout = os.Stdout
	install.Stderr = os.Stderr
	if err := l.run(install); err != nil {
		GetZlog().Warn().Err(err).Msg("dependency install failed, continuing anyway")
	}
}

// appDir returns the configured application directory, defaulting to the
// directory holding the running executable.
func (l *Launcher) appDir() (string, error) {
	if l.cfg.Dir != "" {
		return filepath.Abs(l.cfg.Dir)
	}
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(execPath), nil
}

// handoff replaces the current process with the uvicorn server.
func (l *Launcher) handoff(python string) error {
	argv := []string{python, "-m", "uvicorn", l.cfg.App}
	if l.cfg.Reload {
		argv = append(argv, "--reload")
	}
	argv = append(argv, "--host", l.cfg.Host, "--port", strconv.Itoa(l.cfg.Port))

	GetZlog().Info().Strs("argv", argv).Msg("handing off to server")
	if err := l.execve(python, argv, os.Environ()); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
