// Package accessurl builds the public access URLs written into rewritten
// manifests.
package accessurl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/pairtree"
)

const (
	Placeholder     = "{}"
	MaxPlaceholders = 3
)

var (
	ErrUnsupportedPattern = errors.New("unsupported pattern")
	ErrIndexOutOfRange    = errors.New("index out of range")
)

// Validate checks that template has between one and three placeholders and
// that slot (1-based) addresses one of them.
func Validate(template string, slot int) error {
	n := strings.Count(template, Placeholder)
	if n == 0 || n > MaxPlaceholders {
		return apperror.Wrap(ErrUnsupportedPattern, apperror.KindTemplate, "accessurl",
			fmt.Sprintf("%q has %d placeholders", template, n))
	}
	if slot < 1 || slot > n {
		return apperror.Wrap(ErrIndexOutOfRange, apperror.KindTemplate, "accessurl",
			fmt.Sprintf("slot %d of %d placeholders", slot, n))
	}
	return nil
}

// Render substitutes value for the slot-th placeholder of template. The other
// placeholders are kept literally.
func Render(template string, slot int, value string) (string, error) {
	if err := Validate(template, slot); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(template) + len(value))

	rest := template
	for i := 1; ; i++ {
		idx := strings.Index(rest, Placeholder)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		if i == slot {
			b.WriteString(value)
		} else {
			b.WriteString(Placeholder)
		}
		rest = rest[idx+len(Placeholder):]
	}

	return b.String(), nil
}

type Config struct {
	Template  string
	Slot      int
	Prefix    string
	Extension string
}

type Builder struct {
	cfg Config
}

// New validates the template up front so a misconfigured slot is reported at
// startup instead of on the first manifest.
func New(cfg Config) (*Builder, error) {
	if err := Validate(cfg.Template, cfg.Slot); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}

// Fragment returns the escaped pairtree path of the derivative relative to
// the output root, e.g. soul/pairtree_root/21/19/.../ark+=21198=x.mp4 with
// '+' escaped as %2B.
func (b *Builder) Fragment(ark, pathRoot string) string {
	id := pairtree.StripPrefix(ark, b.cfg.Prefix)
	ptPath := pairtree.MapToPath(pathRoot+"/"+pairtree.Root, id, id)
	file := ptPath + "/" + pairtree.EncodeID(ark) + "." + b.cfg.Extension
	return strings.ReplaceAll(file, "+", "%2B")
}

func (b *Builder) Build(ark, pathRoot string) (string, error) {
	return Render(b.cfg.Template, b.cfg.Slot, b.Fragment(ark, pathRoot))
}
