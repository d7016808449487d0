package textfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"folds case", "GYM Time", "gym time"},
		{"narrows full width", "ＧＹＭ　１ｈｏｕｒ", "gym 1hour"},
		{"collapses spaces", "  study \t\n code  ", "study code"},
		{"keeps chinese", "今天去健身", "今天去健身"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestHasCJK(t *testing.T) {
	assert.True(t, HasCJK("晨跑 5 公里"))
	assert.True(t, HasCJK("run ランニング"))
	assert.False(t, HasCJK("Morning run"))
	assert.False(t, HasCJK(""))
}

func TestRuneLen(t *testing.T) {
	assert.Equal(t, 4, RuneLen("去健身房"))
	assert.Equal(t, 10, RuneLen("gym 1 hour"))
}

func TestKeywordMatcher(t *testing.T) {
	km := NewKeywordMatcher(
		[]string{"STR", "INT", "VIT"},
		map[string][]string{
			"STR": {"gym", "run", "健身"},
			"INT": {"study", "code", "讀書"},
			"VIT": {"sleep", "eat", "睡覺"},
		},
	)

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"gym 1 hour", "STR", true},
		{"GYM", "STR", true},
		{"went to 健身房", "STR", true},
		{"今晚讀書", "INT", true},
		{"code review", "INT", true},
		{"early sleep", "VIT", true},
		{"running late", "", false},
		{"great day", "", false},
		{"gym then study", "STR", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := km.Match(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, []string{"STR", "INT", "VIT"}, km.Labels())
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("I read two chapters of the book", []string{"book", "chapter"}))
	assert.False(t, ContainsAny("went outside", []string{"book"}))
	assert.False(t, ContainsAny("anything", nil))
}

func TestSoftener(t *testing.T) {
	s := NewSoftener()
	assert.Equal(t, "What the heck, slacker?", s.Soften("What the hell, loser?"))
	assert.Equal(t, "DANG", s.Soften("DAMN"))
	assert.Equal(t, "You jerk", s.Soften("You asshole"))
	assert.Equal(t, "classical", s.Soften("classical"))
	assert.Equal(t, "你這個懶蟲", s.Soften("你這個廢物"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "短句", Truncate("短句", 5))
	assert.Equal(t, "一二三…", Truncate("一二三四五", 3))
}
