package checker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/tools/go/packages"

	"typeinf/internal/domain"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

type checkResult struct {
	diags map[domain.Position]string
	fail  *domain.CheckFailure
}

// GoChecker type-checks edited source inside its surrounding project by
// loading the containing package with the edited file overlaid, without
// touching the file on disk. Results are cached by content hash since
// rollout rounds re-check near-identical inputs.
type GoChecker struct {
	cache   *lru.Cache[string, checkResult]
	scratch string
}

func New(cacheSize int) (*GoChecker, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[string, checkResult](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create checker cache: %w", err)
	}
	return &GoChecker{cache: cache}, nil
}

// Check loads the package containing path with code overlaid and
// returns its diagnostics keyed by position within that file. A loader
// crash comes back as a CheckFailure value, not an error.
func (c *GoChecker) Check(ctx context.Context, code, path, dir, searchPath string) (map[domain.Position]string, *domain.CheckFailure, error) {
	if dir == "" {
		var err error
		dir, path, err = c.scratchModule(code)
		if err != nil {
			return nil, nil, err
		}
	}

	key := cacheKey(code, path, dir, searchPath)
	if r, ok := c.cache.Get(key); ok {
		return r.diags, r.fail, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	env := os.Environ()
	if searchPath != "" {
		env = append(env, "GOPATH="+searchPath)
	}
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     dir,
		Env:     env,
		Overlay: map[string][]byte{abs: []byte(code)},
	}
	pkgs, err := packages.Load(cfg, "file="+abs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		fail := &domain.CheckFailure{Output: err.Error()}
		c.cache.Add(key, checkResult{fail: fail})
		return nil, fail, nil
	}

	diags := make(map[domain.Position]string)
	for _, pkg := range pkgs {
		for _, perr := range pkg.Errors {
			pos, inFile := parseErrorPos(perr.Pos, abs)
			if !inFile {
				continue
			}
			if prev, ok := diags[pos]; ok {
				diags[pos] = prev + "; " + perr.Msg
			} else {
				diags[pos] = perr.Msg
			}
		}
	}
	c.cache.Add(key, checkResult{diags: diags})
	return diags, nil, nil
}

// scratchModule materializes a throwaway single-file module so that
// snippets without a project root can still be checked.
func (c *GoChecker) scratchModule(code string) (dir, path string, err error) {
	if c.scratch == "" {
		c.scratch, err = os.MkdirTemp("", "typeinf-check-")
		if err != nil {
			return "", "", err
		}
	}
	sum := sha256.Sum256([]byte(code))
	dir = filepath.Join(c.scratch, hex.EncodeToString(sum[:8]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module scratch\n\ngo 1.22\n"), 0o644); err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", "", err
	}
	return dir, path, nil
}

// ClearTempCache drops cached results and the scratch module directory.
func (c *GoChecker) ClearTempCache() error {
	c.cache.Purge()
	if c.scratch != "" {
		dir := c.scratch
		c.scratch = ""
		return os.RemoveAll(dir)
	}
	return nil
}

func cacheKey(code, path, dir, searchPath string) string {
	h := sha256.New()
	for _, s := range []string{code, path, dir, searchPath} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// parseErrorPos parses a "file:line:col" position string and reports
// whether it refers to the checked file.
func parseErrorPos(pos, file string) (domain.Position, bool) {
	parts := strings.Split(pos, ":")
	if len(parts) < 3 {
		return domain.Position{}, false
	}
	col, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return domain.Position{}, false
	}
	line, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return domain.Position{}, false
	}
	f := strings.Join(parts[:len(parts)-2], ":")
	if f != file && !strings.HasSuffix(file, f) && !strings.HasSuffix(f, filepath.Base(file)) {
		return domain.Position{}, false
	}
	return domain.Position{Line: line, Column: col - 1}, true
}
