package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	baseDir := "/base/dir"

	tests := []struct {
		name    string
		path    string
		baseDir string
		want    string
		wantErr bool
	}{
		{
			name:    "resolves dot-relative path",
			path:    "./analysis.cfg",
			baseDir: baseDir,
			want:    "/base/dir/analysis.cfg",
		},
		{
			name:    "resolves parent-relative path",
			path:    "../katago/analysis.cfg",
			baseDir: baseDir,
			want:    "/base/katago/analysis.cfg",
		},
		{
			name:    "expands tilde path",
			path:    "~/games/kifu",
			baseDir: baseDir,
			want:    filepath.Join(home, "games/kifu"),
		},
		{
			name:    "returns absolute path unchanged",
			path:    "/opt/katago/katago",
			baseDir: baseDir,
			want:    "/opt/katago/katago",
		},
		{
			name:    "resolves bare path from baseDir",
			path:    "games",
			baseDir: baseDir,
			want:    "/base/dir/games",
		},
		{
			name:    "handles empty base dir with relative",
			path:    "./analysis.cfg",
			baseDir: "",
			want:    "analysis.cfg",
		},
		{
			name:    "tilde in middle of path is not expanded",
			path:    "/path/to/~user/file",
			baseDir: baseDir,
			want:    "/path/to/~user/file",
		},
		{
			name:    "empty path returns error",
			path:    "",
			baseDir: baseDir,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.path, tt.baseDir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResolvePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ResolvePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		destDir  string
		want     string
	}{
		{"bare file", "game.sgf", "", "game-analyzed.sgf"},
		{"nested file", "2024/club/game.sgf", "", "2024/club/game-analyzed.sgf"},
		{"absolute file", "/data/kifu/game.sgf", "", "/data/kifu/game-analyzed.sgf"},
		{"no extension", "game", "", "game-analyzed"},
		{"several dots", "game.v2.sgf", "", "game.v2-analyzed.sgf"},
		{"dotfile", ".sgf", "", ".sgf-analyzed"},
		{"destination dir", "2024/game.sgf", "/out", "/out/2024/game-analyzed.sgf"},
		{"relative destination", "game.sgf", "out", "out/game-analyzed.sgf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.filename, tt.destDir); got != tt.want {
				t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.filename, tt.destDir, got, tt.want)
			}
		})
	}
}

func TestSourcePath(t *testing.T) {
	tests := []struct {
		filename  string
		sourceDir string
		want      string
	}{
		{"game.sgf", "", "game.sgf"},
		{"game.sgf", "/kifu", "/kifu/game.sgf"},
		{"2024/game.sgf", "kifu", "kifu/2024/game.sgf"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := SourcePath(tt.filename, tt.sourceDir); got != tt.want {
				t.Errorf("SourcePath(%q, %q) = %q, want %q", tt.filename, tt.sourceDir, got, tt.want)
			}
		})
	}
}
