package content

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Hello World", "hello-world"},
		{"punctuation", "Hello, World!", "hello-world"},
		{"whitespace runs", "  Tahun   Ajaran\tBaru  ", "tahun-ajaran-baru"},
		{"repeated dashes", "a -- b", "a-b"},
		{"edge dashes", "-Juara 1-", "juara-1"},
		{"digits kept", "Selamat 2024/2025", "selamat-20242025"},
		{"non ascii dropped", "Café Über", "caf-ber"},
		{"nothing left", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	for _, title := range []string{"Hello World", "  x -- Y ", "Prestasi Siswa: Juara 1!"} {
		once := Slugify(title)
		assert.Equal(t, once, Slugify(once))
	}
}

func TestExcerptShortContent(t *testing.T) {
	assert.Equal(t, "Short news body.", Excerpt("<p>Short news body.</p>"))
	assert.Equal(t, "", Excerpt("<br/>  "))
}

func TestExcerptWordBoundary(t *testing.T) {
	body := "<p>" + strings.Repeat("word ", 40) + "</p>"
	got := Excerpt(body)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, utf8.RuneCountInString(strings.TrimSuffix(got, "...")), ExcerptLength)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, "..."), " "))
	assert.NotContains(t, got, "<p>")
}

func TestExcerptNoSpace(t *testing.T) {
	body := strings.Repeat("x", 200)
	assert.Equal(t, strings.Repeat("x", ExcerptLength)+"...", Excerpt(body))
}

func TestExcerptCountsRunes(t *testing.T) {
	body := strings.Repeat("é", ExcerptLength)
	assert.Equal(t, body, Excerpt(body))
}

func TestSlugifyShape(t *testing.T) {
	shape := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	titles := []string{
		"Ujian Akhir Semester",
		"  --Lomba  17 Agustus!!  ",
		"Rapat Orang Tua & Guru (Kelas 6)",
		"a",
		"Prestasi: Juara #1 -- Olimpiade",
	}
	for _, title := range titles {
		assert.Regexp(t, shape, Slugify(title), title)
	}
}
