package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii case", "Bluetooth SPEAKER", "bluetooth speaker"},
		{"punctuation", "speaker, waterproof!!", "speaker waterproof"},
		{"full width", "ＳＳＤ　１ＴＢ", "ssd 1tb"},
		{"cjk kept", "防水的藍牙喇叭", "防水的藍牙喇叭"},
		{"empty", "  ,,  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"waterproof", "speaker"}, Tokens("Waterproof speaker"))
	assert.Equal(t, []string{"喇", "喇叭", "叭"}, Tokens("喇叭"))
	assert.Equal(t, []string{"x", "100", "藍", "藍牙", "牙"}, Tokens("X-100 藍牙"))
	assert.Equal(t, []string{"ipx7", "防", "防水", "水"}, Tokens("IPX7防水"))
	assert.Nil(t, Tokens(""))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Unique([]string{"a", "b", "a", "c", "b"}))
}

func TestContainsPhrase(t *testing.T) {
	assert.True(t, ContainsPhrase("waterproof bluetooth speaker", "speaker"))
	assert.True(t, ContainsPhrase("smart home hub", "smart home"))
	assert.False(t, ContainsPhrase("broadband router", "band"))
	assert.False(t, ContainsPhrase("ceramic mug", "mic"))
	assert.True(t, ContainsPhrase("防水的藍牙喇叭", "喇叭"))
	assert.False(t, ContainsPhrase("anything", ""))
}
