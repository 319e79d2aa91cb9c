package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/marek/docmill/internal/domain"
)

func TestFiles(t *testing.T) {
	tests := []struct {
		name    string
		files   []domain.LocalFile
		wantErr bool
		// substrings the aggregated message must mention
		mentions []string
	}{
		{
			name: "accepts docx and pdf",
			files: []domain.LocalFile{
				{Name: "report.docx", Size: 1024},
				{Name: "scan.pdf", Size: 2048},
			},
		},
		{
			name: "extension check is case-insensitive",
			files: []domain.LocalFile{
				{Name: "REPORT.DOCX", Size: 10},
				{Name: "Scan.Pdf", Size: 10},
			},
		},
		{
			name: "size exactly at the limit passes",
			files: []domain.LocalFile{
				{Name: "big.pdf", Size: domain.MaxFileSize},
			},
		},
		{
			name: "rejects unsupported extension",
			files: []domain.LocalFile{
				{Name: "notes.txt", Size: 10},
			},
			wantErr:  true,
			mentions: []string{"notes.txt", "unsupported file type"},
		},
		{
			name: "rejects oversized file",
			files: []domain.LocalFile{
				{Name: "huge.pdf", Size: domain.MaxFileSize + 1},
			},
			wantErr:  true,
			mentions: []string{"huge.pdf", "exceeds"},
		},
		{
			name: "one bad file rejects the whole batch",
			files: []domain.LocalFile{
				{Name: "fine.pdf", Size: 10},
				{Name: "bad.exe", Size: 10},
			},
			wantErr:  true,
			mentions: []string{"bad.exe"},
		},
		{
			name: "reports every offending file",
			files: []domain.LocalFile{
				{Name: "bad.exe", Size: 10},
				{Name: "huge.docx", Size: domain.MaxFileSize * 2},
			},
			wantErr:  true,
			mentions: []string{"bad.exe", "huge.docx"},
		},
		{
			name:     "empty batch",
			files:    nil,
			wantErr:  true,
			mentions: []string{"no files"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Files(tt.files)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Files() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error is %T, want *domain.ValidationError", err)
			}
			for _, want := range tt.mentions {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err.Error(), want)
				}
			}
		})
	}
}
