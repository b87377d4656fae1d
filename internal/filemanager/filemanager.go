// Package filemanager performs the write operations that span files:
// renames that keep every pointing link valid, and serialized frontmatter
// mutation.
package filemanager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mkarlsen/vaultkit/internal/metadata"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

// FileManager coordinates multi-file writes over one vault.
type FileManager struct {
	vault *vault.Vault
	meta  *metadata.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-path frontmatter locks
}

func New(v *vault.Vault, meta *metadata.Cache) *FileManager {
	return &FileManager{
		vault: v,
		meta:  meta,
		locks: make(map[string]*sync.Mutex),
	}
}

// --- Rename with link rewriting ---

// linkEdit is one link occurrence to rewrite, located by byte offsets into
// the source content at capture time.
type linkEdit struct {
	start, end int
	subpath    string // "#heading" or "#^block", empty if none
	display    string
	embed      bool
}

// RenameFile renames a note and rewrites every wikilink and embed that
// resolved to it, across all markdown files, the renamed file included.
// Aliases and #heading/#^block subpaths survive the rewrite; links inside
// code regions were never parsed, so they are naturally left alone.
func (fm *FileManager) RenameFile(ctx context.Context, file *vault.File, newPath string) error {
	oldPath := file.Path()

	// Capture affected occurrences before the rename invalidates resolution.
	edits := make(map[*vault.File][]linkEdit)
	for _, src := range fm.vault.GetMarkdownFiles() {
		meta := fm.meta.GetFileCache(src)
		if meta == nil {
			continue
		}
		var found []linkEdit
		collect := func(links []metadata.LinkCache, embed bool) {
			for _, lc := range links {
				dest := fm.meta.GetFirstLinkpathDest(lc.Link, src.Path())
				if dest == nil || dest.Path() != oldPath {
					continue
				}
				subpath := ""
				if i := strings.Index(lc.Link, "#"); i >= 0 {
					subpath = lc.Link[i:]
				}
				found = append(found, linkEdit{
					start:   lc.Position.Start.Offset,
					end:     lc.Position.End.Offset,
					subpath: subpath,
					display: lc.DisplayText,
					embed:   embed,
				})
			}
		}
		collect(meta.Links, false)
		collect(meta.Embeds, true)
		if len(found) > 0 {
			edits[src] = found
		}
	}

	if err := fm.vault.Rename(ctx, file, newPath); err != nil {
		return err
	}

	for src, found := range edits {
		content, err := fm.vault.Read(ctx, src)
		if err != nil {
			return fmt.Errorf("rewrite links in %s: %w", src.Path(), err)
		}
		target := fm.LinkPath(file, src.Path())

		// Splice back-to-front so earlier offsets stay valid.
		sort.Slice(found, func(i, j int) bool { return found[i].start > found[j].start })
		for _, e := range found {
			if e.start < 0 || e.end > len(content) {
				continue
			}
			inner := target + e.subpath
			if e.display != "" {
				inner += "|" + e.display
			}
			link := "[[" + inner + "]]"
			if e.embed {
				link = "!" + link
			}
			content = content[:e.start] + link + content[e.end:]
		}

		if err := fm.vault.Modify(ctx, src, content); err != nil {
			return fmt.Errorf("rewrite links in %s: %w", src.Path(), err)
		}
	}
	return nil
}

// LinkPath picks the shortest unambiguous link text for a target as seen
// from a source note: bare basename when the target shares the source's
// folder or is the only file with that basename, full path without the .md
// extension otherwise. Non-markdown targets always keep their full path.
func (fm *FileManager) LinkPath(target *vault.File, sourcePath string) string {
	if target.Extension() != "md" {
		return target.Path()
	}
	base := target.Basename()
	if dirOf(target.Path()) == dirOf(vault.NormalizePath(sourcePath)) {
		return base
	}

	matches := 0
	for _, f := range fm.vault.GetFiles() {
		if strings.EqualFold(f.Basename(), base) {
			matches++
		}
	}
	if matches == 1 {
		return base
	}
	return strings.TrimSuffix(target.Path(), ".md")
}

// --- Frontmatter ---

// ProcessFrontMatter reads a note's YAML frontmatter into a map, hands it to
// fn for mutation, and writes the note back if anything changed. Calls for
// the same path are serialized; corrupt frontmatter is replaced by whatever
// fn builds from an empty map rather than failing.
func (fm *FileManager) ProcessFrontMatter(ctx context.Context, file *vault.File, fn func(frontmatter map[string]any)) error {
	lock := fm.pathLock(file.Path())
	lock.Lock()
	defer lock.Unlock()

	content, err := fm.vault.Read(ctx, file)
	if err != nil {
		return err
	}

	block, body, had := splitFrontmatter(content)
	props := make(map[string]any)
	if had {
		if err := yaml.Unmarshal([]byte(block), &props); err != nil || props == nil {
			props = make(map[string]any)
		}
	}

	fn(props)

	rebuilt, err := assemble(props, body)
	if err != nil {
		return fmt.Errorf("serialize frontmatter for %s: %w", file.Path(), err)
	}
	if rebuilt == content {
		return nil
	}
	return fm.vault.Modify(ctx, file, rebuilt)
}

func (fm *FileManager) pathLock(path string) *sync.Mutex {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	lock, ok := fm.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		fm.locks[path] = lock
	}
	return lock
}

// splitFrontmatter separates the leading YAML block from the body. The block
// comes back without its fences; body keeps everything after the closing
// fence line.
func splitFrontmatter(content string) (block, body string, had bool) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return "", content, false
	}
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		t := strings.TrimRight(lines[i], "\r")
		if t == "---" || t == "..." {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", content, false
}

func assemble(props map[string]any, body string) (string, error) {
	if len(props) == 0 {
		return body, nil
	}
	out, err := yaml.Marshal(props)
	if err != nil {
		return "", err
	}
	return "---\n" + string(out) + "---\n" + body, nil
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}
