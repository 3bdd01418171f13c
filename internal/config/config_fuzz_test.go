package config

import (
	"os"
	"strconv"
	"strings"
	"testing"
)

// FuzzLoadConfigTOML feeds random-ish values into a tiny TOML and ensures
// the loader never panics and either returns a valid config or an error.
func FuzzLoadConfigTOML(f *testing.F) {
	f.Add("chronicle.db", 4, "30m", "info") // dsn, jobs, timeout, level
	f.Add("", 0, "", "")
	f.Add("postgres://localhost/x", -1, "abc", "debug")

	f.Fuzz(func(t *testing.T, dsn string, jobs int, timeout string, level string) {
		clean := func(s string) string {
			s = strings.ReplaceAll(s, "\"", "")
			s = strings.ReplaceAll(s, "\\", "")
			return strings.ReplaceAll(s, "\n", "")
		}
		var b strings.Builder
		b.WriteString("[store]\ndsn = \"" + clean(dsn) + "\"\n")
		b.WriteString("[ingest]\n")
		b.WriteString("timeout = \"" + clean(timeout) + "\"\n")
		b.WriteString("max_concurrent_jobs = ")
		b.WriteString(strconv.Itoa(((jobs % 10) + 10) % 10))
		b.WriteString("\n[log]\nlevel = \"" + clean(level) + "\"\n")

		tmp := t.TempDir() + "/fuzz.toml"
		if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
			t.Skip()
		}
		c, err := LoadConfig(tmp)
		if err == nil {
			if verr := c.Validate(); verr != nil {
				t.Fatalf("loaded config failed validation: %v", verr)
			}
		}
	})
}
