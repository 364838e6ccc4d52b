package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEnvironments are the deployment environments recognized when pairing
// base manifests with overlay files.
var DefaultEnvironments = []string{"dev", "staging", "prod"}

// Artifact is one deployable document plus its optional environment overlay.
type Artifact struct {
	Name        string   // logical name, derived from the base file stem
	Path        string   // base manifest file
	OverlayPath string   // overlay file, empty when none
	Env         string   // target environment
	Base        Document
	Overlay     Document // nil when no overlay applies
}

// HasOverlay reports whether an environment overlay participates in this
// artifact's derivation.
func (a *Artifact) HasOverlay() bool {
	return a.Overlay != nil
}

// Set is the unit the quality gate evaluates: every artifact targeted at one
// environment.
type Set struct {
	Env       string
	Artifacts []Artifact
}

// ParseDocuments decodes a YAML stream into its constituent documents.
// Empty documents (separators, comment-only blocks) are skipped.
func ParseDocuments(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)
	var docs []Document
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml document %d: %w", len(docs), err)
		}
		if len(doc) == 0 {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ParseFile reads and decodes one YAML manifest file.
func ParseFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := ParseDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return docs, nil
}

// LoadSet scans dir for *.yaml base manifests and pairs each with its
// <stem>.<env>.yaml overlay when one exists. Files whose stem ends in a
// recognized environment suffix are overlays, never bases. A multi-document
// base pairs with its overlay positionally; the overlay must then carry the
// same document count.
func LoadSet(dir, env string) (*Set, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	ymls, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}
	matches = append(matches, ymls...)
	sort.Strings(matches)

	set := &Set{Env: env}
	for _, path := range matches {
		stem := fileStem(path)
		if overlayEnv(stem) != "" {
			continue
		}

		baseDocs, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		var overlayDocs []Document
		overlayPath := overlayFor(path, env)
		if overlayPath != "" {
			overlayDocs, err = ParseFile(overlayPath)
			if err != nil {
				return nil, err
			}
			if len(overlayDocs) != len(baseDocs) {
				return nil, fmt.Errorf("overlay %s has %d documents, base %s has %d",
					overlayPath, len(overlayDocs), path, len(baseDocs))
			}
		}

		for i, doc := range baseDocs {
			a := Artifact{
				Name: stem,
				Path: path,
				Env:  env,
				Base: doc,
			}
			if len(baseDocs) > 1 {
				a.Name = fmt.Sprintf("%s#%d", stem, i)
			}
			if overlayDocs != nil {
				a.OverlayPath = overlayPath
				a.Overlay = overlayDocs[i]
			}
			set.Artifacts = append(set.Artifacts, a)
		}
	}

	return set, nil
}

// overlayFor returns the path of the environment overlay for a base manifest,
// or empty when the file does not exist.
func overlayFor(basePath, env string) string {
	ext := filepath.Ext(basePath)
	candidate := strings.TrimSuffix(basePath, ext) + "." + env + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// overlayEnv returns the environment a file stem targets, or empty for base
// manifests. app.staging -> staging; app -> "".
func overlayEnv(stem string) string {
	idx := strings.LastIndex(stem, ".")
	if idx < 0 {
		return ""
	}
	suffix := stem[idx+1:]
	for _, e := range DefaultEnvironments {
		if suffix == e {
			return e
		}
	}
	return ""
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
