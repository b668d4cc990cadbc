package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/sgc/internal/adapters/storage/sqlite"
	"github.com/hylla/sgc/internal/config"
	"github.com/hylla/sgc/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("SGC_DEV_MODE", "false")
	for _, name := range []string{"SGC_CONFIG", "SGC_DB_PATH", "SGC_APP_NAME", "SGC_ACTOR", "SGC_ACTOR_UNIT", "SGC_ACTOR_ROLE"} {
		_ = os.Unsetenv(name)
	}
	os.Exit(m.Run())
}

const seedYAML = `
units:
  - id: u-root
    code: ADM
    name: Administration
    type: ROOT
    responsible: {id: r-root, name: Ana Admin, email: adm@example.org}
  - id: u-sec
    code: SEC
    name: Secretariat
    type: INTERMEDIATE
    superior: u-root
    responsible: {id: r-sec, name: Sam Sec, email: sec@example.org}
  - id: u-opa
    code: OPA
    name: Operations A
    type: OPERATIONAL
    superior: u-sec
    responsible: {id: r-opa, name: Olga Opa, email: opa@example.org}
    substitute: {id: s-opa, name: Otto Opa, email: opa-sub@example.org}
effective_maps:
  - unit: u-opa
    activities:
      - description: Prepare budget
        knowledge: [Spreadsheets]
      - description: Audit expenses
        knowledge: [Accounting]
    competencies:
      - description: Financial planning
        activities: [Prepare budget, Audit expenses]
`

// cliEnv isolates one test's database and config file.
type cliEnv struct {
	dir     string
	dbPath  string
	cfgPath string
}

func newCLIEnv(t *testing.T, configTOML string) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		dir:     dir,
		dbPath:  filepath.Join(dir, "sgc.db"),
		cfgPath: filepath.Join(dir, "config.toml"),
	}
	if err := os.WriteFile(env.cfgPath, []byte(configTOML), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return env
}

func (e cliEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func (e cliEnv) run(args ...string) (string, error) {
	var out strings.Builder
	full := append([]string{"--db", e.dbPath, "--config", e.cfgPath, "--dev=false"}, args...)
	err := run(context.Background(), full, &out, io.Discard)
	return out.String(), err
}

func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(args...)
	if err != nil {
		t.Fatalf("run(%s) error = %v", strings.Join(args, " "), err)
	}
	return out
}

func as(actorID, unitID string, role domain.Role, args ...string) []string {
	return append([]string{"--actor", actorID, "--actor-unit", unitID, "--role", string(role)}, args...)
}

func (e cliEnv) subprocessIDs(t *testing.T, processID string) []domain.Subprocess {
	t.Helper()
	repo, err := sqlite.Open(e.dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = repo.Close() }()
	subs, err := repo.ListSubprocesses(context.Background(), processID)
	if err != nil {
		t.Fatalf("ListSubprocesses() error = %v", err)
	}
	return subs
}

func TestRunPathsCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	var out strings.Builder
	err := run(context.Background(), []string{"--app", "sgcx", "--dev", "paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	for _, want := range []string{"app: sgcx", "dev_mode: true", "sgcx-dev.db", "log_dir:"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in paths output, got %q", want, output)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}, io.Discard, io.Discard); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	env := newCLIEnv(t, "[logging]\nlevel = \"verbose\"\n")
	_, err := env.run("process", "list")
	if err == nil {
		t.Fatal("expected invalid logging level error")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	if err := os.WriteFile(cfgPath, []byte("[database]\npath = \"/tmp/ignore-me.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("SGC_CONFIG", cfgPath)
	t.Setenv("SGC_DB_PATH", dbPath)

	if err := run(context.Background(), []string{"--dev=false", "process", "list"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(process list with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

func TestRunMappingWorkflowEndToEnd(t *testing.T) {
	env := newCLIEnv(t, "[notifications]\nsubject_prefix = \"[SGC]\"\n")
	seedPath := env.writeFile(t, "seed.yaml", seedYAML)

	out := env.mustRun(t, "seed", "--file", seedPath)
	if !strings.Contains(out, "imported 3 units and 1 effective maps") {
		t.Fatalf("unexpected seed output %q", out)
	}

	processID := strings.TrimSpace(env.mustRun(t, "process", "create",
		"--description", "Mapping 2026", "--kind", "MAPPING", "--deadline", "2099-12-31", "--unit", "u-opa"))
	if processID == "" {
		t.Fatal("expected process id on stdout")
	}
	out = env.mustRun(t, "process", "start", processID)
	if !strings.Contains(out, "IN_PROGRESS") || !strings.Contains(out, "OPA") {
		t.Fatalf("unexpected start output %q", out)
	}
	subs := env.subprocessIDs(t, processID)
	if len(subs) != 1 {
		t.Fatalf("expected one subprocess, got %d", len(subs))
	}
	subID := subs[0].ID

	activityID := strings.TrimSpace(env.mustRun(t, as("r-opa", "u-opa", domain.RoleChief, "activity", "add", subID, "-d", "Prepare budget")...))
	env.mustRun(t, as("r-opa", "u-opa", domain.RoleChief, "knowledge", "add", activityID, "-d", "Spreadsheets")...)

	out = env.mustRun(t, as("r-opa", "u-opa", domain.RoleChief, "cadastro", "submit", subID)...)
	if !strings.Contains(out, string(domain.StateCadastroSubmitted)) {
		t.Fatalf("unexpected submit output %q", out)
	}
	env.mustRun(t, as("r-sec", "u-sec", domain.RoleChief, "cadastro", "accept", subID, "--observations", "ok")...)
	out = env.mustRun(t, as("r-root", "u-root", domain.RoleAdmin, "cadastro", "homologate", subID)...)
	if !strings.Contains(out, string(domain.StateCadastroHomologated)) {
		t.Fatalf("unexpected homologate output %q", out)
	}

	competencies := env.writeFile(t, "competencies.yaml", `
competencies:
  - description: Financial planning
    activities: [Prepare budget]
`)
	out = env.mustRun(t, as("r-root", "u-root", domain.RoleAdmin, "map", "save", subID, "--file", competencies)...)
	if !strings.Contains(out, "saved 1 competencies") {
		t.Fatalf("unexpected map save output %q", out)
	}
	env.mustRun(t, as("r-root", "u-root", domain.RoleAdmin, "map", "submit", subID, "--deadline", "2099-12-31")...)
	env.mustRun(t, as("r-opa", "u-opa", domain.RoleChief, "map", "validate", subID)...)
	env.mustRun(t, as("r-sec", "u-sec", domain.RoleChief, "map", "accept", subID)...)
	out = env.mustRun(t, as("r-root", "u-root", domain.RoleAdmin, "map", "homologate", subID)...)
	if !strings.Contains(out, string(domain.StateMapHomologated)) {
		t.Fatalf("unexpected map homologate output %q", out)
	}

	out = env.mustRun(t, "map", "show", subID)
	for _, want := range []string{"Prepare budget", "Spreadsheets", "Financial planning"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in map show output, got %q", want, out)
		}
	}

	out = env.mustRun(t, "process", "finish", processID)
	if !strings.Contains(out, string(domain.ProcessStateFinished)) {
		t.Fatalf("unexpected finish output %q", out)
	}

	out = env.mustRun(t, "history", subID)
	for _, want := range []string{"Movements", "Analyses", "SEC", "ADM"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in history output, got %q", want, out)
		}
	}

	out = env.mustRun(t, "outbox", "list", "--limit", "0")
	for _, want := range []string{"opa@example.org", "opa-sub@example.org", "[SGC]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in outbox output, got %q", want, out)
		}
	}
	env.mustRun(t, "outbox", "ack", "1")
	if _, err := env.run("outbox", "ack", "1"); err == nil {
		t.Fatal("expected second ack of the same message to fail")
	}
}

func TestRunRevisionImpacts(t *testing.T) {
	env := newCLIEnv(t, "")
	seedPath := env.writeFile(t, "seed.yaml", seedYAML)
	env.mustRun(t, "seed", "--file", seedPath)

	out := env.mustRun(t, "map", "effective", "--unit", "u-opa")
	if !strings.Contains(out, "Audit expenses") || !strings.Contains(out, "Financial planning") {
		t.Fatalf("unexpected effective map output %q", out)
	}

	processID := strings.TrimSpace(env.mustRun(t, "process", "create",
		"-d", "Revision 2026", "-k", "REVISION", "--deadline", "2099-12-31"))
	if _, err := env.run("process", "start", processID); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected revision start without units to fail validation, got %v", err)
	}
	env.mustRun(t, "process", "start", processID, "--unit", "u-opa")
	subID := env.subprocessIDs(t, processID)[0].ID

	out = env.mustRun(t, "impacts", subID)
	if !strings.Contains(out, "no impacts on the effective map") {
		t.Fatalf("expected no impacts for untouched clone, got %q", out)
	}

	env.mustRun(t, as("r-opa", "u-opa", domain.RoleChief, "activity", "add", subID, "-d", "Train staff")...)
	out = env.mustRun(t, "impacts", subID)
	if !strings.Contains(out, "1 inserted, 0 removed, 0 altered") || !strings.Contains(out, "Train staff") {
		t.Fatalf("unexpected impacts output %q", out)
	}
}

func TestRunWorkflowCommandsRequireActor(t *testing.T) {
	env := newCLIEnv(t, "")
	_, err := env.run("cadastro", "submit", "sub-1")
	if err == nil || !strings.Contains(err.Error(), "--actor") {
		t.Fatalf("expected actor error, got %v", err)
	}
}

func TestRunSurfacesDomainErrors(t *testing.T) {
	env := newCLIEnv(t, "")
	seedPath := env.writeFile(t, "seed.yaml", seedYAML)
	env.mustRun(t, "seed", "--file", seedPath)
	processID := strings.TrimSpace(env.mustRun(t, "process", "create",
		"-d", "Mapping", "--deadline", "2099-12-31", "-u", "u-opa"))
	env.mustRun(t, "process", "start", processID)
	subID := env.subprocessIDs(t, processID)[0].ID

	_, err := env.run(as("r-sec", "u-sec", domain.RoleChief, "activity", "add", subID, "-d", "Prepare budget")...)
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	_, err = env.run(as("r-opa", "u-opa", domain.RoleChief, "cadastro", "submit", subID)...)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for untouched cadastro, got %v", err)
	}
}

func TestRunLogSenderLeavesOutboxEmpty(t *testing.T) {
	env := newCLIEnv(t, "[notifications]\nsender = \"log\"\n")
	seedPath := env.writeFile(t, "seed.yaml", seedYAML)
	env.mustRun(t, "seed", "--file", seedPath)
	processID := strings.TrimSpace(env.mustRun(t, "process", "create",
		"-d", "Mapping", "--deadline", "2099-12-31", "-u", "u-opa"))
	env.mustRun(t, "process", "start", processID)

	out := env.mustRun(t, "outbox", "list")
	if !strings.Contains(out, "outbox empty") {
		t.Fatalf("expected empty outbox with log sender, got %q", out)
	}
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	promPath := filepath.Join(dir, "sgc.prom")
	env := newCLIEnv(t, "[metrics]\ntextfile = \""+filepath.ToSlash(promPath)+"\"\n")
	seedPath := env.writeFile(t, "seed.yaml", seedYAML)
	env.mustRun(t, "seed", "--file", seedPath)
	processID := strings.TrimSpace(env.mustRun(t, "process", "create",
		"-d", "Mapping", "--deadline", "2099-12-31", "-u", "u-opa"))
	env.mustRun(t, "process", "start", processID)

	data, err := os.ReadFile(promPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `sgc_transitions_total{operation="start_process",outcome="ok"} 1`) {
		t.Fatalf("expected start_process counter, got %q", data)
	}
	if !strings.Contains(string(data), `sgc_notifications_total{outcome="sent",template="process_started"}`) {
		t.Fatalf("expected notification counter, got %q", data)
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("SGC_BOOL_TEST", "true")
	if v, ok := parseBoolEnv("SGC_BOOL_TEST"); !ok || !v {
		t.Fatalf("expected true, got %v %v", v, ok)
	}
	t.Setenv("SGC_BOOL_TEST", "nope")
	if _, ok := parseBoolEnv("SGC_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
	if _, ok := parseBoolEnv("SGC_BOOL_UNSET"); ok {
		t.Fatal("expected unset env to be ignored")
	}
}

func TestRunDevModeCreatesLogFile(t *testing.T) {
	env := newCLIEnv(t, "")
	logDir := filepath.Join(env.dir, "logs")
	env.writeFile(t, "config.toml", "[logging.dev_file]\nenabled = true\ndir = \""+filepath.ToSlash(logDir)+"\"\n")

	var out strings.Builder
	err := run(context.Background(), []string{"--db", env.dbPath, "--config", env.cfgPath, "--dev", "process", "list"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected one .log file in %s, got %v", logDir, entries)
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}

func TestDevLogFilePathResolvesAgainstWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "sgc")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	t.Chdir(nested)

	got, err := devLogFilePath(".sgc/log", "sgc dev", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	normalize := func(p string) string {
		return strings.TrimPrefix(filepath.Clean(p), "/private")
	}
	want := filepath.Join(root, ".sgc", "log", "sgc-dev-20260222.log")
	if normalize(got) != normalize(want) {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
}

func TestNewRuntimeLoggerSkipsFileOutsideDevMode(t *testing.T) {
	logger, err := newRuntimeLogger(io.Discard, "sgc", false, config.LoggingConfig{
		Level:   "debug",
		DevFile: config.DevFileConfig{Enabled: true, Dir: t.TempDir()},
	}, "", nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log outside dev mode, got %q", logger.DevLogPath())
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
