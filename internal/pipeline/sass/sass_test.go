package sass

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fingerprint"
	"git.home.luguber.info/inful/packler/internal/pipeline"
	"git.home.luguber.info/inful/packler/internal/testutil"
)

// fakeSass copies the input to the output and appends the style. Inputs
// containing FAIL exit non-zero with a message on stderr.
const fakeSass = `#!/bin/sh
[ "$1" = "--no-source-map" ] || { echo "missing --no-source-map" >&2; exit 64; }
[ "$2" = "-s" ] || { echo "missing -s" >&2; exit 64; }
if grep -q FAIL "$4"; then echo "Error: expected \"{\"." >&2; exit 65; fi
{ cat "$4"; echo "/* $3 */"; } > "$5"
`

type fixture struct {
	assets string
	dist   string
	target string
	sass   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}
	root := t.TempDir()
	f := &fixture{
		assets: filepath.Join(root, "assets"),
		dist:   filepath.Join(root, "dist"),
		target: filepath.Join(root, "target"),
		sass:   filepath.Join(root, "bin", "sass"),
	}
	testutil.WriteFileMode(t, root, "bin/sass", fakeSass, 0o755)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	testutil.WriteFile(t, f.assets, "css/"+rel, content)
}

func (f *fixture) stage(entries []string, style config.SassStyle) *Stage {
	return New(Options{
		AssetsRoot:  f.assets,
		SourceDir:   filepath.Join(f.assets, "css"),
		DistDir:     filepath.Join(f.dist, "css"),
		StagingRoot: filepath.Join(f.dist, ".packler-tmp"),
		ScratchDir:  filepath.Join(f.target, "packler", "sass"),
		Entrypoints: entries,
		Style:       style,
		Version:     config.DefaultSassVersion,
		Resolver:    StaticResolver{Path: f.sass},
	})
}

func TestArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"--no-source-map", "-s", "compressed", "in.scss", "out.css"},
		Args("in.scss", "out.css", config.SassStyleCompressed))
}

func TestProcess_CompilesAndFingerprints(t *testing.T) {
	f := newFixture(t)
	f.write(t, "main.scss", "body { color: red; }\n")
	f.write(t, "admin/theme.dark.scss", "a { color: blue; }\n")

	res, err := f.stage([]string{"main.scss", "admin/theme.dark.scss"}, config.SassStyleCompressed).Process(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Failures)
	require.Len(t, res.Records, 2)

	main := res.Records[0]
	assert.Equal(t, "css/main.scss", main.LogicalPath)
	assert.Equal(t, filepath.Join(f.assets, "css", "main.scss"), main.SourcePath)
	assert.Equal(t, "css/main-"+fingerprint.Hex(main.Hash)+".css", main.ProcessedRelativePath)

	theme := res.Records[1]
	assert.Equal(t, "css/admin/theme.dark.scss", theme.LogicalPath)
	assert.Equal(t, "css/admin/theme.dark-"+fingerprint.Hex(theme.Hash)+".css", theme.ProcessedRelativePath)

	data, err := os.ReadFile(filepath.Join(f.dist, filepath.FromSlash(main.ProcessedRelativePath)))
	require.NoError(t, err)
	assert.Equal(t, main.Hash, fingerprint.Hash(data))
	assert.Contains(t, string(data), "/* compressed */")

	// Intermediate files are moved, not left behind.
	_, err = os.Stat(filepath.Join(f.target, "packler", "sass", "main.css"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcess_MissingEntrypointDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.write(t, "main.scss", "body {}\n")

	res, err := f.stage([]string{"missing.scss", "main.scss"}, config.SassStyleExpanded).Process(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "css/main.scss", res.Records[0].LogicalPath)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "missing.scss", res.Failures[0].Item)
	assert.True(t, perrors.IsCategory(res.Failures[0].Err, perrors.CategoryInput))
}

func TestProcess_EntriesSharingAStemCompileOnce(t *testing.T) {
	f := newFixture(t)
	f.write(t, "site.scss", "a {}\n")
	f.write(t, "site.sass", "b\n  color: red\n")
	f.write(t, "other.scss", "c {}\n")
	entries := []string{"site.scss", "site.sass", "other.scss", "./site.scss"}
	want := fingerprint.Hash([]byte("a {}\n/* expanded */\n"))

	for range 10 {
		res, err := f.stage(entries, config.SassStyleExpanded).Process(context.Background())
		require.NoError(t, err)

		require.Len(t, res.Records, 2)
		assert.Equal(t, "css/site.scss", res.Records[0].LogicalPath)
		assert.Equal(t, want, res.Records[0].Hash, "site.scss is hashed from its own output")
		assert.Equal(t, "css/site-"+fingerprint.Hex(want)+".css", res.Records[0].ProcessedRelativePath)
		assert.Equal(t, "css/other.scss", res.Records[1].LogicalPath)

		require.Len(t, res.Failures, 2)
		assert.Equal(t, "site.sass", res.Failures[0].Item)
		assert.Equal(t, "./site.scss", res.Failures[1].Item)
		for _, fail := range res.Failures {
			assert.True(t, perrors.IsCategory(fail.Err, perrors.CategoryValidation))
			pe, ok := perrors.As(fail.Err)
			require.True(t, ok)
			assert.Contains(t, pe.Context["reason"], `"site.scss"`)
		}
	}
}

func TestProcess_CompilerFailureIsPerEntry(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ok.scss", "a {}\n")
	f.write(t, "broken.scss", "FAIL\n")

	res, err := f.stage([]string{"broken.scss", "ok.scss"}, config.SassStyleExpanded).Process(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Len(t, res.Failures, 1)

	pe, ok := perrors.As(res.Failures[0].Err)
	require.True(t, ok)
	assert.Equal(t, perrors.CategoryTool, pe.Category)
	assert.Equal(t, 65, pe.Context["exit_code"])
	assert.Contains(t, pe.Cause.Error(), `expected "{"`)
}

func TestProcess_AllEntriesFailYieldsEmptyResult(t *testing.T) {
	f := newFixture(t)
	res, err := f.stage([]string{"a.scss", "b.scss"}, config.SassStyleExpanded).Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Len(t, res.Failures, 2)

	entries, err := os.ReadDir(filepath.Join(f.dist, "css"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_DeterministicAcrossRuns(t *testing.T) {
	f := newFixture(t)
	f.write(t, "main.scss", "body { margin: 0; }\n")
	stage := f.stage([]string{"main.scss"}, config.SassStyleExpanded)

	first, err := stage.Process(context.Background())
	require.NoError(t, err)
	second, err := stage.Process(context.Background())
	require.NoError(t, err)

	require.Len(t, first.Records, 1)
	require.Len(t, second.Records, 1)
	assert.Equal(t, first.Records[0].ProcessedRelativePath, second.Records[0].ProcessedRelativePath)
	_, err = os.Stat(filepath.Join(f.dist, filepath.FromSlash(second.Records[0].ProcessedRelativePath)))
	assert.NoError(t, err)
}

func TestProcess_ResolverFailureIsSetupError(t *testing.T) {
	f := newFixture(t)
	f.write(t, "main.scss", "a {}\n")
	stage := f.stage([]string{"main.scss"}, config.SassStyleExpanded)
	stage.opts.Resolver = StaticResolver{}

	res, err := stage.Process(context.Background())
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryTool))
	assert.Empty(t, res.Records)
}

func TestProcess_NoEntrypointsSkipsCompiler(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.dist, "css/old-0000000000000000.css", "x")

	stage := f.stage(nil, config.SassStyleExpanded)
	stage.opts.Resolver = nil

	res, err := stage.Process(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Attempted())
	testutil.NewTree(t, f.dist).Missing("css/old-0000000000000000.css")
}

type resultWithErr struct {
	res pipeline.Result
	err error
}

type countingCompiler struct {
	inFlight, peak atomic.Int32
	release        chan struct{}
}

func (c *countingCompiler) Compile(_ context.Context, input, output string, _ config.SassStyle) error {
	n := c.inFlight.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-c.release
	c.inFlight.Add(-1)
	if strings.Contains(input, "bad") {
		return errors.New("boom")
	}
	return os.WriteFile(output, []byte("/* "+filepath.Base(input)+" */"), 0o644)
}

func TestProcess_EntriesRunConcurrentlyWithoutCancellation(t *testing.T) {
	f := newFixture(t)
	entries := []string{"a.scss", "bad.scss", "c.scss"}
	for _, e := range entries {
		f.write(t, e, e)
	}

	cc := &countingCompiler{release: make(chan struct{})}
	stage := f.stage(entries, config.SassStyleExpanded)
	stage.opts.NewCompiler = func(string) Compiler { return cc }

	done := make(chan struct{})
	var res resultWithErr
	go func() {
		res.res, res.err = stage.Process(context.Background())
		close(done)
	}()

	// Wait until every task is blocked inside the compiler, then let them go.
	for cc.inFlight.Load() < int32(len(entries)) {
		runtime.Gosched()
	}
	close(cc.release)
	<-done

	require.NoError(t, res.err)
	assert.Equal(t, int32(len(entries)), cc.peak.Load())
	require.Len(t, res.res.Records, 2)
	assert.Equal(t, "css/a.scss", res.res.Records[0].LogicalPath)
	assert.Equal(t, "css/c.scss", res.res.Records[1].LogicalPath)
	require.Len(t, res.res.Failures, 1)
	assert.Equal(t, "bad.scss", res.res.Failures[0].Item)
}

func TestExecCompiler_SpawnFailure(t *testing.T) {
	c := ExecCompiler{Path: filepath.Join(t.TempDir(), "does-not-exist")}
	err := c.Compile(context.Background(), "in.scss", "out.css", config.SassStyleExpanded)
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryTool))
	pe, _ := perrors.As(err)
	assert.Equal(t, "error spawning sass call", pe.Message)
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist", "css")
	scratch := filepath.Join(root, "target", "packler", "sass")
	require.NoError(t, os.MkdirAll(dist, 0o755))
	require.NoError(t, os.MkdirAll(scratch, 0o755))

	require.NoError(t, Clean(dist, scratch))
	for _, p := range []string{dist, scratch} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}
