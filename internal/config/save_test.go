package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveStudentReplacesSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# my settings
server:
  base_url: http://tutor.school.edu

student:
  user_id: old
  course_name: algebra
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	require.NoError(t, SaveStudent(path, StudentConfig{UserID: "new", CourseName: "calculus"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# my settings", "comments outside the section survive")

	var parsed struct {
		Server struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"server"`
		Student struct {
			UserID     string `yaml:"user_id"`
			CourseName string `yaml:"course_name"`
		} `yaml:"student"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Equal(t, "http://tutor.school.edu", parsed.Server.BaseURL)
	require.Equal(t, "new", parsed.Student.UserID)
	require.Equal(t, "calculus", parsed.Student.CourseName)
}

func TestSaveStudentAppendsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o600))

	require.NoError(t, SaveStudent(path, StudentConfig{UserID: "u1", CourseName: "geometry"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "user_id: u1"))
	require.True(t, strings.Contains(string(data), "debug: true"))
}

func TestSaveStudentCreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SaveStudent(path, StudentConfig{UserID: "u1", CourseName: "physics"}))

	var parsed map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Contains(t, parsed, "student")
}
