package images

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/packler/internal/fingerprint"
	"git.home.luguber.info/inful/packler/internal/testutil"
)

type fixture struct {
	root   string
	assets string
	dist   string
	stage  *Stage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:   root,
		assets: filepath.Join(root, "assets"),
		dist:   filepath.Join(root, "dist"),
	}
	f.stage = New(Options{
		AssetsRoot:  f.assets,
		SourceDir:   filepath.Join(f.assets, "images"),
		DistDir:     filepath.Join(f.dist, "images"),
		StagingRoot: filepath.Join(f.dist, ".packler-tmp"),
	})
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	testutil.WriteFile(t, f.assets, rel, content)
}

func TestProcess_FingerprintsAndCopies(t *testing.T) {
	f := newFixture(t)
	f.write(t, "images/logo.png", "png-bytes")
	f.write(t, "images/icons/app.min.svg", "<svg/>")

	res, err := f.stage.Process(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Failures)
	require.Len(t, res.Records, 2)

	byLogical := map[string]string{}
	for _, r := range res.Records {
		byLogical[r.LogicalPath] = r.ProcessedRelativePath
	}

	logoHash := fingerprint.Hash([]byte("png-bytes"))
	assert.Equal(t, "images/logo-"+fingerprint.Hex(logoHash)+".png", byLogical["images/logo.png"])
	svgHash := fingerprint.Hash([]byte("<svg/>"))
	assert.Equal(t, "images/icons/app.min-"+fingerprint.Hex(svgHash)+".svg", byLogical["images/icons/app.min.svg"])

	for _, r := range res.Records {
		data, err := os.ReadFile(filepath.Join(f.dist, filepath.FromSlash(r.ProcessedRelativePath)))
		require.NoError(t, err)
		assert.Equal(t, r.Hash, fingerprint.Hash(data))
		assert.Equal(t, filepath.Join(f.assets, filepath.FromSlash(r.LogicalPath)), r.SourcePath)
	}

	_, err = os.Stat(filepath.Join(f.dist, ".packler-tmp"))
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(f.dist, ".packler-tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory must be cleaned up")
}

func TestProcess_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "images/a.png", "aaa")

	first, err := f.stage.Process(context.Background())
	require.NoError(t, err)
	second, err := f.stage.Process(context.Background())
	require.NoError(t, err)

	require.Len(t, first.Records, 1)
	require.Len(t, second.Records, 1)
	assert.Equal(t, first.Records[0].ProcessedRelativePath, second.Records[0].ProcessedRelativePath)
	assert.Equal(t, first.Records[0].Hash, second.Records[0].Hash)
}

func TestProcess_ReplacesPreviousOutput(t *testing.T) {
	f := newFixture(t)
	f.write(t, "images/a.png", "v1")
	first, err := f.stage.Process(context.Background())
	require.NoError(t, err)

	f.write(t, "images/a.png", "v2")
	second, err := f.stage.Process(context.Background())
	require.NoError(t, err)

	require.NotEqual(t, first.Records[0].ProcessedRelativePath, second.Records[0].ProcessedRelativePath)
	testutil.NewTree(t, f.dist).
		Missing(first.Records[0].ProcessedRelativePath).
		Exists(second.Records[0].ProcessedRelativePath)
}

func TestProcess_MissingSourceDirYieldsEmptyOutput(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.dist, "images/old.png", "x")

	res, err := f.stage.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Records)

	entries, err := os.ReadDir(filepath.Join(f.dist, "images"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_SkipsNonRegularFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "images/real.png", "real")
	require.NoError(t, os.Symlink(filepath.Join(f.assets, "images", "real.png"), filepath.Join(f.assets, "images", "link.png")))

	res, err := f.stage.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "images/real.png", res.Records[0].LogicalPath)
}

func TestProcess_UnreadableFileIsDroppedNotFatal(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	f := newFixture(t)
	f.write(t, "images/ok.png", "ok")
	f.write(t, "images/locked.png", "locked")
	require.NoError(t, os.Chmod(filepath.Join(f.assets, "images", "locked.png"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(f.assets, "images", "locked.png"), 0o644) })

	res, err := f.stage.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "images/ok.png", res.Records[0].LogicalPath)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "images/locked.png", res.Failures[0].Item)
}

func TestProcess_CanceledContextKeepsPreviousOutput(t *testing.T) {
	f := newFixture(t)
	f.write(t, "images/a.png", "a")
	first, err := f.stage.Process(context.Background())
	require.NoError(t, err)

	f.write(t, "images/a.png", "changed")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.stage.Process(ctx)
	require.Error(t, err)

	testutil.NewTree(t, f.dist).Exists(first.Records[0].ProcessedRelativePath)
}

func TestClean(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, Clean(dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, Clean(dir), "cleaning twice is fine")
}
