package gallery

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jane Doe", "jane doe"},
		{"jane-doe", "jane doe"},
		{"JANE_DOE", "jane doe"},
		{"  Jane   Doe ", "jane doe"},
		{"Jan Novák", "jan novak"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeLabel(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLabelFromFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"jane_doe.jpg", "Jane Doe"},
		{"photos/JOHN_SMITH.PNG", "John Smith"},
		{"maria__garcia.jpeg", "Maria Garcia"},
		{"single.png", "Single"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := LabelFromFilename(tt.input)
			if result != tt.expected {
				t.Errorf("LabelFromFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
