// Package saxdb implements the named-subsystem database registry described
// in §4.4: each subsystem registers a (reader, writer, interval), gets an
// atomic write-via-tempfile-and-rename flush on a schedule, and may opt into
// a shared "mondo" file that composes several subsystems' state into one
// document. Grounded on original_source/src/saxdb.c.
package saxdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ircservd/internal/config"
	"ircservd/internal/logger"
	"ircservd/internal/recorddb"
)

// Reader loads a subsystem's persisted state from its named sub-object. It
// returns 0/nil on success; per §7, a reader failure on one entry is logged
// and skipped, not fatal to the whole load.
type Reader func(obj *recorddb.Object) error

// Writer serializes a subsystem's state into ctx. Any error it returns
// aborts only this subsystem's flush.
type Writer func(ctx *WriteContext) error

type subsystem struct {
	name         string
	reader       Reader
	writer       Writer
	frequency    time.Duration
	filename     string
	mondoSection string // empty unless this subsystem writes into the mondo file
}

// Registry owns every registered subsystem and the shared mondo document.
type Registry struct {
	cfg         *config.Config
	dataDir     string
	subsystems  []*subsystem
	byName      map[string]*subsystem
}

// NewRegistry creates a registry rooted at dataDir, consulting cfg for each
// subsystem's dbs/<name>/{filename,frequency,mondo_section} overrides.
func NewRegistry(cfg *config.Config, dataDir string) *Registry {
	return &Registry{cfg: cfg, dataDir: dataDir, byName: make(map[string]*subsystem)}
}

// Register adds a subsystem, resolves its filename/frequency/mondo-section
// from config, and immediately loads any existing on-disk state by invoking
// reader (§4.4: "On registration the framework resolves a filename... reads
// it (if present)...").
func (r *Registry) Register(name string, reader Reader, writer Writer) error {
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("saxdb: subsystem %q already registered", name)
	}
	sub := &subsystem{name: name, reader: reader, writer: writer}

	section := r.cfg.Section("dbs/" + name)
	sub.frequency = 1800 * time.Second
	sub.filename = lowercaseDBName(name)
	if section != nil {
		sub.frequency = section.GetDuration("frequency", sub.frequency)
		sub.filename = section.GetString("filename", sub.filename)
		sub.mondoSection = section.GetString("mondo_section", "")
	}

	r.byName[name] = sub
	r.subsystems = append(r.subsystems, sub)

	if sub.mondoSection == "" {
		if err := r.loadStandalone(sub); err != nil {
			logger.Errorf("saxdb: failed to load %s: %v", name, err)
		}
	}
	// Mondo-section subsystems are loaded together by LoadMondo, called
	// once all subsystems that might share the mondo file are registered.
	return nil
}

func lowercaseDBName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out) + ".db"
}

func (r *Registry) loadStandalone(sub *subsystem) error {
	path := filepath.Join(r.dataDir, sub.filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	obj, err := recorddb.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := sub.reader(obj); err != nil {
		logger.Errorf("saxdb: %s reader reported an error (continuing): %v", sub.name, err)
	}
	return nil
}

// LoadMondo reads the shared mondo file (if present) and invokes every
// mondo-section subsystem's reader with its own named sub-object, in
// registration order (§4.4: "iterates registered subsystems in registration
// order").
func (r *Registry) LoadMondo() error {
	path := filepath.Join(r.dataDir, "mondo.db")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	root, err := recorddb.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, sub := range r.subsystems {
		if sub.mondoSection == "" {
			continue
		}
		section := root.GetObject(sub.mondoSection)
		if section == nil {
			continue
		}
		if err := sub.reader(section); err != nil {
			logger.Errorf("saxdb: %s mondo reader reported an error (continuing): %v", sub.name, err)
		}
	}
	return nil
}

// FlushAll writes every standalone subsystem to its own file and, if any
// subsystem uses mondo mode, writes the shared mondo file once. Each flush
// uses the tempfile-then-rename discipline (§4.4 "Flush discipline").
func (r *Registry) FlushAll() {
	var mondoSubs []*subsystem
	for _, sub := range r.subsystems {
		if sub.mondoSection != "" {
			mondoSubs = append(mondoSubs, sub)
			continue
		}
		r.flushStandalone(sub)
	}
	if len(mondoSubs) > 0 {
		r.flushMondo(mondoSubs)
	}
}

func (r *Registry) flushStandalone(sub *subsystem) {
	obj := recorddb.NewObject()
	ctx := newWriteContext(obj)
	if err := sub.writer(ctx); err != nil {
		logger.Errorf("saxdb: %s writer failed, database left untouched: %v", sub.name, err)
		return
	}
	path := filepath.Join(r.dataDir, sub.filename)
	if err := atomicWrite(path, obj); err != nil {
		logger.Errorf("saxdb: failed to flush %s: %v", sub.name, err)
	}
}

func (r *Registry) flushMondo(subs []*subsystem) {
	root := recorddb.NewObject()
	for _, sub := range subs {
		obj := recorddb.NewObject()
		ctx := newWriteContext(obj)
		if err := sub.writer(ctx); err != nil {
			logger.Errorf("saxdb: mondo section %s writer failed, section skipped: %v", sub.name, err)
			continue
		}
		root.SetObject(sub.mondoSection, obj)
	}
	path := filepath.Join(r.dataDir, "mondo.db")
	if err := atomicWrite(path, root); err != nil {
		logger.Errorf("saxdb: failed to flush mondo database: %v", err)
	}
}

// atomicWrite implements the crash-safety contract: write to <file>.new,
// then rename over <file>. A failure removes the tempfile and leaves the
// prior file intact (§4.4, §7 "Database write errors").
func atomicWrite(path string, obj *recorddb.Object) (err error) {
	tmp := path + ".new"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if err = recorddb.Write(f, obj); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Frequencies returns each registered subsystem's name and its own
// configured flush interval; mondo-section subsystems are listed
// individually, each with its own value.
func (r *Registry) Frequencies() map[string]time.Duration {
	out := make(map[string]time.Duration, len(r.subsystems))
	for _, sub := range r.subsystems {
		out[sub.name] = sub.frequency
	}
	return out
}
