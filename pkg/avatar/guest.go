// Package avatar serves generated placeholder avatars for names that have no
// picture of their own.
package avatar

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
)

const (
	defaultSize = 64
	maxSize     = 512

	// cacheSeconds matches the avatar cache lifetime used elsewhere (24 hours).
	cacheSeconds = 60 * 60 * 24
)

// palette holds the background colors a name can hash to. Foreground is
// always white.
var palette = []string{
	"#b34098", "#0082c9", "#e9322d", "#f1a42a",
	"#00a55f", "#8c5aa8", "#d37285", "#507fa3",
}

// Handler serves generated guest avatars.
type Handler struct{}

// NewHandler creates a guest avatar Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Routes returns the guest avatar routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/guest/{name}", h.handleGuest)
	return r
}

func (h *Handler) handleGuest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if strings.TrimSpace(name) == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	size := defaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if v > maxSize {
			v = maxSize
		}
		size = v
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(cacheSeconds))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(Render(name, size))
}

// Render produces an SVG avatar for the given display name: the name's
// initials on a background color derived from hashing the name, so the same
// name always renders the same avatar.
func Render(name string, size int) []byte {
	color := palette[colorIndex(name)]
	initials := Initials(name)
	fontSize := size * 2 / 5

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size, size, size, size)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="%s"/>`, size, size, color)
	fmt.Fprintf(&b,
		`<text x="50%%" y="50%%" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="%d" fill="#ffffff">%s</text>`,
		fontSize, escapeText(initials))
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// Initials returns up to two uppercase initials for a display name: the first
// letter of the first and last words.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "?"
	}

	first := firstLetter(words[0])
	if len(words) == 1 {
		return first
	}
	return first + firstLetter(words[len(words)-1])
}

func firstLetter(word string) string {
	for _, r := range word {
		return string(unicode.ToUpper(r))
	}
	return ""
}

func colorIndex(name string) int {
	sum := sha256.Sum256([]byte(name))
	return int(sum[0]) % len(palette)
}

func escapeText(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
