package evaluation

import "testing"

func testContentRules() ContentRules {
	return ContentRules{
		MinLength:          30,
		MinSentences:       2,
		MaxRunLength:       5,
		MaxEmojiDensity:    .10,
		MinUniqueSentences: .70,
	}
}

func TestContentRulesValidate(t *testing.T) {
	rules := testContentRules()

	tests := []struct {
		name string
		text string
		want string // a message expected among the violations; empty means none
	}{
		{
			name: "substantive feedback passes",
			text: "이번 분기 데이터 파이프라인 개선 과제를 주도적으로 이끌었습니다. 배포 실패율이 크게 줄었고 문서화 역시 충실하게 정리되었습니다.",
		},
		{
			name: "empty",
			text: "   ",
			want: msgFeedbackRequired,
		},
		{
			name: "too short",
			text: "아주 잘 진행된 과제였습니다. 계속 기대합니다.",
			want: "feedback must contain at least 30 characters",
		},
		{
			name: "single sentence",
			text: "전반적으로 우수한 성과를 보여주었으며 앞으로의 발전이 더욱 기대되는 훌륭한 평가 기간이었습니다.",
			want: "feedback must contain at least 2 sentences",
		},
		{
			name: "character run",
			text: "정말 좋은 성과입니다!!!!! 앞으로도 지금 같은 모습을 계속 기대하고 있겠습니다.",
			want: msgCharRun,
		},
		{
			name: "isolated consonant run",
			text: "ㅋㅋㅋㅋㅋㅋ 정말 재미있게 협업했던 한 해였습니다. 내년에도 함께하고 싶습니다.",
			want: msgConsonantRun,
		},
		{
			name: "repeated emoticons",
			text: "같이 일하면서 많이 배웠어요 ^^ 항상 밝은 에너지 감사합니다 ㅎㅎ 내년에도 잘 부탁드립니다.",
			want: msgRepeatedEmoticons,
		},
		{
			name: "generic boilerplate",
			text: "수고하셨습니다.",
			want: msgGenericBoilerplate,
		},
		{
			name: "repeated sentences",
			text: "올해도 정말 열심히 노력했습니다. 올해도 정말 열심히 노력했습니다. 올해도 정말 열심히 노력했습니다.",
			want: msgRepeatedSentences,
		},
		{
			name: "mostly emoji",
			text: "👍👍👍 잘했어요 👍👍👍",
			want: msgEmojiDensity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := rules.Validate(tt.text)
			if tt.want == "" {
				if len(msgs) != 0 {
					t.Errorf("Validate(%q) = %v, want no violations", tt.text, msgs)
				}
				return
			}
			for _, m := range msgs {
				if m == tt.want {
					return
				}
			}
			t.Errorf("Validate(%q) = %v, want it to contain %q", tt.text, msgs, tt.want)
		})
	}
}

// Every violated rule is reported, not just the first.
func TestContentRulesValidateReportsAll(t *testing.T) {
	msgs := testContentRules().Validate("수고하셨습니다.")
	wants := []string{
		"feedback must contain at least 30 characters",
		"feedback must contain at least 2 sentences",
		msgGenericBoilerplate,
	}
	if len(msgs) != len(wants) {
		t.Fatalf("got %d violations %v, want %d", len(msgs), msgs, len(wants))
	}
	for i, want := range wants {
		if msgs[i] != want {
			t.Errorf("violation %d = %q, want %q", i, msgs[i], want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "punctuated", text: "첫 번째 문장입니다. 두 번째 문장입니다!", want: 2},
		{name: "korean enders without punctuation", text: "정말 잘했어요 다음에도 기대할게요", want: 2},
		{name: "newline separated", text: "첫 줄\n둘째 줄", want: 2},
		{name: "single", text: "하나의 문장", want: 1},
		{name: "empty", text: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitSentences(tt.text); len(got) != tt.want {
				t.Errorf("SplitSentences(%q) = %v (%d), want %d", tt.text, got, len(got), tt.want)
			}
		})
	}
}

func TestTextSimilarity(t *testing.T) {
	if sim := TextSimilarity("동일한 문장입니다", "동일한 문장입니다"); sim != 1 {
		t.Errorf("identical texts similarity = %v, want 1", sim)
	}
	if sim := TextSimilarity("가나다라마바사", "xyzqwerty"); sim > .2 {
		t.Errorf("disjoint texts similarity = %v, want near 0", sim)
	}
	if sim := TextSimilarity("협업이 훌륭했습니다", "협업이 훌륭했어요"); sim <= .5 {
		t.Errorf("similar texts similarity = %v, want > .5", sim)
	}
}
