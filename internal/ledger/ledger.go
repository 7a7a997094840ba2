// Package ledger persists per-reporter result lists as small JSON documents.
//
// Each ledger is one file holding a {key: [value, ...]} mapping. The whole
// document is read, mutated in memory, and atomically rewritten on every
// change. File sizes stay small and the download job is strictly
// single-writer, so the full rewrite is fine.
package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by Entries when a reporter has no recorded values.
var ErrNotFound = errors.New("ledger: reporter not found")

// Ledger is a file-backed mapping from reporter to an unordered set of
// string values (partner names in the results ledger, year labels in the
// mirror-data ledger).
type Ledger struct {
	path string
}

// New returns a ledger backed by the given file. The file is created lazily
// on the first Record call.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record adds value to the reporter's list if it is not already present.
func (l *Ledger) Record(reporter, value string) error {
	doc, err := l.load()
	if err != nil {
		return err
	}
	if slices.Contains(doc[reporter], value) {
		return nil
	}
	doc[reporter] = append(doc[reporter], value)
	return l.save(doc)
}

// Remove deletes value from the reporter's list. Removing an absent value
// (or an absent reporter) is a no-op.
func (l *Ledger) Remove(reporter, value string) error {
	doc, err := l.load()
	if err != nil {
		return err
	}
	vals, ok := doc[reporter]
	if !ok {
		return nil
	}
	idx := slices.Index(vals, value)
	if idx < 0 {
		return nil
	}
	doc[reporter] = slices.Delete(vals, idx, idx+1)
	return l.save(doc)
}

// Entries returns the reporter's recorded values. It fails with ErrNotFound
// when the reporter has no entry, which callers treat as "no prior pass".
func (l *Ledger) Entries(reporter string) ([]string, error) {
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	vals, ok := doc[reporter]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "ledger: %s in %s", reporter, l.path)
	}
	return slices.Clone(vals), nil
}

func (l *Ledger) load() (map[string][]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, eris.Wrapf(err, "ledger: read %s", l.path)
	}
	doc := map[string][]string{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "ledger: parse %s", l.path)
	}
	return doc, nil
}

// save rewrites the whole document through a temp file and rename so a crash
// mid-write never leaves a truncated ledger behind.
func (l *Ledger) save(doc map[string][]string) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return eris.Wrapf(err, "ledger: marshal %s", l.path)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "ledger: temp file for %s", l.path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: close %s", tmpName)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "ledger: replace %s", l.path)
	}
	return nil
}
