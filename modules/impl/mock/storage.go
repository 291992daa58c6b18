package mock

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/padme-experiment/padme-cdr/core"
)

var (
	_ core.SiteAccessor = (*Storage)(nil)
	_ core.Transporter  = (*Storage)(nil)
)

// Storage keeps the files of every site in memory and copies between them.
// It serves both as site accessor and as transporter.
type Storage struct {
	mu    sync.Mutex
	files map[string]map[string]core.FileAttributes

	copies  []string
	removes []string

	failCopy     map[string]error
	corrupt      map[string]bool
	stubbornDirs map[string]int
	listErr      map[string]error
}

func NewStorage() *Storage {
	return &Storage{
		files:        map[string]map[string]core.FileAttributes{},
		failCopy:     map[string]error{},
		corrupt:      map[string]bool{},
		stubbornDirs: map[string]int{},
		listErr:      map[string]error{},
	}
}

func siteKey(site core.Site) string {
	return site.Name + "|" + site.Endpoint
}

// Put stores a file at site.
func (s *Storage) Put(site core.Site, p string, attrs core.FileAttributes) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(site, p, attrs)
}

func (s *Storage) put(site core.Site, p string, attrs core.FileAttributes) {
	key := siteKey(site)
	if s.files[key] == nil {
		s.files[key] = map[string]core.FileAttributes{}
	}

	s.files[key][p] = attrs
}

// Get returns what is stored at site under p.
func (s *Storage) Get(site core.Site, p string) (core.FileAttributes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.files[siteKey(site)][p]
	return attrs, ok
}

// Paths returns the sorted paths stored at site.
func (s *Storage) Paths(site core.Site) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paths []string
	for p := range s.files[siteKey(site)] {
		paths = append(paths, p)
	}

	sort.Strings(paths)
	return paths
}

// FailCopy makes every copy of file fail with a transport failure, after a partial write.
func (s *Storage) FailCopy(file string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failCopy[file] = err
}

// Corrupt makes copies of file arrive with a different checksum.
func (s *Storage) Corrupt(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.corrupt[file] = true
}

// Stubborn makes the next n recursive removals of dir leave its files in place.
func (s *Storage) Stubborn(dir string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stubbornDirs[dir] = n
}

// FailList makes listings of dir fail with err.
func (s *Storage) FailList(dir string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listErr[dir] = err
}

// Copies returns the "file src->dst" records of every copy attempt.
func (s *Storage) Copies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.copies...)
}

// Removes returns the paths passed to Remove and RemoveAll.
func (s *Storage) Removes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.removes...)
}

func (s *Storage) Access(site core.Site) (core.SiteAccess, error) {
	return &siteAccess{storage: s, site: site}, nil
}

func (s *Storage) Supports(src, _ core.SiteKind) bool {
	return src != core.RemoteShellTape
}

func (s *Storage) Copy(ctx context.Context, req core.CopyRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.Supports(req.Src.Kind, req.Dst.Kind) {
		return fmt.Errorf("%s -> %s: %w", req.Src.Kind, req.Dst.Kind, core.ErrUnsupportedRoute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.copies = append(s.copies, fmt.Sprintf("%s %s->%s", req.File, req.Src.Label(), req.Dst.Label()))

	attrs, ok := s.files[siteKey(req.Src)][req.SrcPath]
	if !ok {
		return fmt.Errorf("copy %s: %w: source vanished", req.File, core.ErrTransportFailure)
	}

	if err, fail := s.failCopy[req.File]; fail {
		// the partial write is rolled back as a real transporter does
		s.put(req.Dst, req.DstPath, core.FileAttributes{Size: attrs.Size / 2})
		delete(s.files[siteKey(req.Dst)], req.DstPath)
		return fmt.Errorf("copy %s: %w: %v", req.File, core.ErrTransportFailure, err)
	}

	if s.corrupt[req.File] {
		attrs.Checksum = "ffffffff"
	}

	s.put(req.Dst, req.DstPath, attrs)
	return nil
}

type siteAccess struct {
	storage *Storage
	site    core.Site
}

func (a *siteAccess) Site() core.Site {
	return a.site
}

func (a *siteAccess) Exists(_ context.Context, p string) (bool, error) {
	_, ok := a.storage.Get(a.site, p)
	return ok, nil
}

func (a *siteAccess) Size(_ context.Context, p string) (int64, error) {
	attrs, ok := a.storage.Get(a.site, p)
	if !ok {
		return 0, fmt.Errorf("%s: %w", p, core.ErrMissing)
	}

	return attrs.Size, nil
}

func (a *siteAccess) Checksum(_ context.Context, p string) (string, error) {
	attrs, ok := a.storage.Get(a.site, p)
	if !ok || !attrs.HasChecksum() {
		return "", fmt.Errorf("%s: %w", p, core.ErrChecksumUnavailable)
	}

	return attrs.Checksum, nil
}

func (a *siteAccess) Stat(_ context.Context, p string) (core.FileAttributes, error) {
	attrs, ok := a.storage.Get(a.site, p)
	if !ok {
		return core.FileAttributes{}, fmt.Errorf("%s: %w", p, core.ErrMissing)
	}

	return attrs, nil
}

// List returns sizes only, as the real listing tools do.
func (a *siteAccess) List(_ context.Context, dir string) (core.Listing, error) {
	s := a.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.listErr[dir]; ok {
		return nil, err
	}

	listing := core.Listing{}
	found := false
	for p, attrs := range s.files[siteKey(a.site)] {
		if !strings.HasPrefix(p, dir+"/") {
			continue
		}

		found = true
		if path.Dir(p) == dir {
			listing[path.Base(p)] = core.FileAttributes{Size: attrs.Size}
		}
	}

	if !found {
		return nil, fmt.Errorf("%s: %w", dir, core.ErrPathNotFound)
	}

	return listing, nil
}

func (a *siteAccess) Remove(_ context.Context, p string) error {
	s := a.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removes = append(s.removes, p)
	delete(s.files[siteKey(a.site)], p)
	return nil
}

func (a *siteAccess) RemoveAll(_ context.Context, dir string) error {
	if a.site.Kind == core.RemoteShellTape {
		return fmt.Errorf("remove %s: %w", dir, core.ErrUnsupportedOperation)
	}

	s := a.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removes = append(s.removes, dir)
	if n := s.stubbornDirs[dir]; n > 0 {
		s.stubbornDirs[dir] = n - 1
		return nil
	}

	for p := range s.files[siteKey(a.site)] {
		if strings.HasPrefix(p, dir+"/") {
			delete(s.files[siteKey(a.site)], p)
		}
	}

	return nil
}
