package llm

import (
	"strings"
	"unicode"
)

// 可以切句的标点集合
var punctuationMap = map[rune]bool{
	'。':  true,
	'？':  true,
	'！':  true,
	'；':  true,
	'：':  true,
	'\n': true,
	'.':  true,
	'?':  true,
	'!':  true,
	';':  true,
	':':  true,
}

// containsSentenceSeparator 增量分片里出现了可切句标点才触发一次提取
// 首句时逗号也算，尽快出第一段语音
func containsSentenceSeparator(text string, isFirst bool) bool {
	for _, r := range text {
		if punctuationMap[r] {
			return true
		}
		if isFirst && (r == ',' || r == '，') {
			return true
		}
	}
	return false
}

// isNumberPrefix 判断点号是不是"1."这类序号的一部分，是则不切句
func isNumberPrefix(text []rune, pos int) bool {
	if pos <= 0 || text[pos] != '.' {
		return false
	}

	start := pos - 1
	digitCount := 0
	for start >= 0 && text[start] >= '0' && text[start] <= '9' {
		digitCount++
		if digitCount > 3 {
			return false
		}
		start--
	}
	if digitCount == 0 {
		return false
	}

	// 序号前应当是行首或空白
	return start < 0 || text[start] == ' ' || text[start] == '\t' || text[start] == '\n'
}

// findNextSplitPoint 从startPos起找下一个切句点，maxLen内找不到时继续向后找
func findNextSplitPoint(text []rune, startPos int, maxLen int, allowPause bool) int {
	endPos := startPos + maxLen
	if endPos > len(text) {
		endPos = len(text)
	}

	for i := startPos; i < endPos; i++ {
		if punctuationMap[text[i]] {
			if text[i] == '.' && isNumberPrefix(text, i) {
				continue
			}
			return i
		}
		if allowPause && (text[i] == ',' || text[i] == '，') {
			return i
		}
	}

	// maxLen内没有切句点，放宽到整段找
	for i := endPos; i < len(text); i++ {
		if punctuationMap[text[i]] {
			if text[i] == '.' && isNumberPrefix(text, i) {
				continue
			}
			return i
		}
	}

	return -1
}

// extractSmartSentences 从累积文本中提取可以送TTS的完整句子
// 返回句子列表和未完成的剩余文本
// minLen: 不足此长度的片段并入剩余文本; maxLen: 超过此长度时允许在暂停标点处切
// isFirst: 首句用逗号也能切，降低首帧延迟
func extractSmartSentences(text string, minLen, maxLen int, isFirst bool) (sentences []string, remaining string) {
	runes := []rune(text)
	startPos := 0

	for startPos < len(runes) {
		for startPos < len(runes) && unicode.IsSpace(runes[startPos]) {
			startPos++
		}
		if startPos >= len(runes) {
			break
		}

		allowPause := isFirst && len(sentences) == 0
		splitPos := findNextSplitPoint(runes, startPos, maxLen, allowPause)
		if splitPos == -1 {
			tail := strings.TrimSpace(string(runes[startPos:]))
			if remaining != "" && tail != "" {
				remaining += " "
			}
			remaining += tail
			break
		}

		segment := strings.TrimSpace(string(runes[startPos : splitPos+1]))
		segRunes := []rune(segment)

		if len(segRunes) >= minLen {
			sentences = append(sentences, segment)
		} else if segment != "" {
			// 太短的片段留到下一轮
			if remaining != "" {
				remaining += " "
			}
			remaining += segment
		}

		startPos = splitPos + 1
	}

	return sentences, remaining
}
