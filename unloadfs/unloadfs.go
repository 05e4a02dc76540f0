// Package unloadfs writes a decoded *archive.Archive to disk: one
// directory per PO/PO-E dataset with its members as files inside, one
// file per PS dataset, extensions chosen by classify's text/binary
// verdict and MIME guess. It is a thin sink consuming the narrow Archive
// interface, per spec.md §1's collaborator split -- nothing here feeds
// back into decoding.
package unloadfs

import (
	"os"
	"path/filepath"

	"github.com/mainframed/xmi/archive"
	"github.com/mainframed/xmi/classify"
	"github.com/mainframed/xmi/ebcdic"
	"github.com/mainframed/xmi/recfmt"
)

// Options controls how streams are classified before being written.
type Options struct {
	Classify classify.Options
	CodePage *ebcdic.CodePage
}

// mimeExtensions maps the handful of MIME guesses spec.md §6 names to a
// file extension. Anything else is written without a guessed suffix.
var mimeExtensions = map[string]string{
	"application/zip":    ".zip",
	"application/x-gzip": ".gz",
	"application/pdf":     ".pdf",
	"image/png":          ".png",
	"image/jpeg":         ".jpg",
}

// Write unloads a into outputDir, creating it if necessary.
func Write(a *archive.Archive, outputDir string, opts Options) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	for _, ds := range a.Datasets {
		if ds == a.Message {
			continue
		}
		if err := writeDataset(ds, outputDir, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeDataset(ds *archive.Dataset, outputDir string, opts Options) error {
	switch ds.Organization {
	case archive.OrgPO, archive.OrgPOE:
		dir := filepath.Join(outputDir, sanitize(ds.Name))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for _, m := range ds.Members {
			if m.Orphan {
				continue
			}
			kind, decoded := classifyBytes(m.Bytes, ds.Recfm, ds.Lrecl, opts)
			name := sanitize(m.Name) + extensionFor(kind, m.Bytes, opts)
			body := m.Bytes
			if kind == classify.Text {
				body = decoded
			}
			if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
				return err
			}
		}
		return nil
	default:
		kind, decoded := classifyBytes(ds.Bytes, ds.Recfm, ds.Lrecl, opts)
		name := sanitize(ds.Name) + extensionFor(kind, ds.Bytes, opts)
		body := ds.Bytes
		if kind == classify.Text {
			body = decoded
		}
		return os.WriteFile(filepath.Join(outputDir, name), body, 0o644)
	}
}

func classifyBytes(raw []byte, recfm recfmt.RECFM, lrecl int, opts Options) (classify.Kind, []byte) {
	if opts.CodePage == nil {
		return classify.Binary, raw
	}
	return classify.Classify(raw, recfm, lrecl, opts.CodePage, opts.Classify)
}

func extensionFor(kind classify.Kind, raw []byte, opts Options) string {
	if kind == classify.Text {
		if looksLikeJCL(raw, opts) {
			return ".jcl"
		}
		return ".txt"
	}
	if opts.CodePage == nil {
		return ""
	}
	if ext, ok := mimeExtensions[classify.SniffMIME(raw, opts.CodePage)]; ok {
		return ext
	}
	return ""
}

// looksLikeJCL flags a text stream whose first two decoded bytes are "//",
// the job-card convention spec.md §6 names alongside .zip/.txt as an
// auto-appended extension.
func looksLikeJCL(raw []byte, opts Options) bool {
	if opts.CodePage == nil || len(raw) < 2 {
		return false
	}
	return opts.CodePage.Decode(raw[:2]) == "//"
}

func sanitize(name string) string {
	if name == "" {
		return "_unnamed"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == filepath.Separator || r == '/' || r == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
