package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsSentenceSeparator(t *testing.T) {
	assert.True(t, containsSentenceSeparator("你好。", false))
	assert.True(t, containsSentenceSeparator("ok!", false))
	assert.True(t, containsSentenceSeparator("line\nbreak", false))
	assert.False(t, containsSentenceSeparator("还没说完", false))

	// 首句时逗号也触发
	assert.True(t, containsSentenceSeparator("先这样，", true))
	assert.False(t, containsSentenceSeparator("先这样，", false))
	assert.True(t, containsSentenceSeparator("well, then", true))
}

func TestIsNumberPrefix(t *testing.T) {
	cases := []struct {
		text string
		pos  int
		want bool
	}{
		{"1. 第一项", 1, true},
		{"12. item", 2, true},
		{" 3. item", 2, true},
		{"v1.2", 2, false},   // 序号前不是空白
		{"句子.", 2, false},    // 点号前不是数字
		{"1234. x", 4, false}, // 超过三位不当序号
	}
	for _, c := range cases {
		assert.Equal(t, c.want, isNumberPrefix([]rune(c.text), c.pos), "text=%q pos=%d", c.text, c.pos)
	}
}

func TestExtractSmartSentencesBasic(t *testing.T) {
	sentences, remaining := extractSmartSentences("今天天气不错。我们出去走走吧！还没说完的部分", 5, 100, false)

	assert.Equal(t, []string{"今天天气不错。", "我们出去走走吧！"}, sentences)
	assert.Equal(t, "还没说完的部分", remaining)
}

func TestExtractSmartSentencesFirstSplitsOnComma(t *testing.T) {
	// 首句允许在逗号切，后续句子不受影响
	sentences, remaining := extractSmartSentences("好的没问题，我马上帮你查询今天的天气情况。", 5, 100, true)

	assert.Equal(t, []string{"好的没问题，", "我马上帮你查询今天的天气情况。"}, sentences)
	assert.Empty(t, remaining)
}

func TestExtractSmartSentencesNonFirstKeepsComma(t *testing.T) {
	sentences, remaining := extractSmartSentences("好的没问题，我马上帮你查", 5, 100, false)

	assert.Empty(t, sentences)
	assert.Equal(t, "好的没问题，我马上帮你查", remaining)
}

func TestExtractSmartSentencesNumberedList(t *testing.T) {
	// "1."的点号不切句
	sentences, remaining := extractSmartSentences("步骤如下：1. 打开门。", 5, 100, false)

	assert.Equal(t, []string{"步骤如下：", "1. 打开门。"}, sentences)
	assert.Empty(t, remaining)
}

func TestExtractSmartSentencesShortSegmentDeferred(t *testing.T) {
	// 不足minLen的片段不单独成句
	sentences, remaining := extractSmartSentences("嗯。今天的天气很适合出门散步。", 5, 100, false)

	assert.Equal(t, []string{"今天的天气很适合出门散步。"}, sentences)
	assert.Equal(t, "嗯。", remaining)
}

func TestExtractSmartSentencesEmpty(t *testing.T) {
	sentences, remaining := extractSmartSentences("", 5, 100, true)
	assert.Empty(t, sentences)
	assert.Empty(t, remaining)

	sentences, remaining = extractSmartSentences("   ", 5, 100, false)
	assert.Empty(t, sentences)
	assert.Empty(t, remaining)
}
