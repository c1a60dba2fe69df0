package domain

import (
	"fmt"
	"strings"
)

// Orientation labels and insight sentences of the rendered interpretation.
const (
	LabelReversed = "Ngược"
	LabelUpright  = "Xuôi"

	InsightFated     = "Nhiều lá Ẩn Chính xuất hiện cho thấy đây là giai đoạn có những sự kiện quan trọng, mang tính định mệnh."
	InsightDaily     = "Phần lớn là lá Ẩn Phụ, vấn đề xoay quanh cuộc sống hằng ngày và những quyết định cá nhân của bạn."
	InsightObstacles = "Nhiều lá bài ngược cho thấy có những trở ngại cần vượt qua."
	InsightPositive  = "Năng lượng tích cực đang hỗ trợ bạn."
	InsightConcise   = "Đây là một trải bài ngắn gọn, tập trung vào vấn đề chính."
	InsightComplex   = "Đây là một trải bài phức tạp, hãy xem xét mối liên hệ giữa các lá bài."
)

// GenericPositionLabel is the label of a position the spread does not name.
func GenericPositionLabel(number int) string {
	return fmt.Sprintf("Vị trí %d", number)
}

// RenderInterpretation renders the narrative of a reading whose cards are
// resolved. Position names come from spread; a zero Spread yields generic
// labels. The output depends only on its inputs.
func RenderInterpretation(r Reading, spread Spread) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trải bài: %s\n", r.SpreadName)
	if r.Question != "" {
		fmt.Fprintf(&b, "Câu hỏi: %q\n", r.Question)
	}
	b.WriteString("\n")

	var major, reversed int
	for i, rc := range r.Cards {
		seq := i + 1
		name, meaning := rc.CardID, ""
		if rc.Card != nil {
			name = rc.Card.Name
			meaning = rc.Card.Meaning(rc.Reversed)
			if rc.Card.Arcana == MajorArcana {
				major++
			}
		}
		label := LabelUpright
		if rc.Reversed {
			label = LabelReversed
			reversed++
		}

		position := spread.PositionName(seq)
		if position == "" {
			position = GenericPositionLabel(seq)
		}

		fmt.Fprintf(&b, "%d. %s (%s) - %s\n", seq, name, label, position)
		if meaning != "" {
			b.WriteString(meaning)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	n := len(r.Cards)
	b.WriteString("Tổng quan:\n")
	if major*2 > n {
		b.WriteString(InsightFated)
	} else {
		b.WriteString(InsightDaily)
	}
	b.WriteString("\n")
	if reversed*2 > n {
		b.WriteString(InsightObstacles)
	} else {
		b.WriteString(InsightPositive)
	}
	b.WriteString("\n")
	if n <= 3 {
		b.WriteString(InsightConcise)
	} else {
		b.WriteString(InsightComplex)
	}
	b.WriteString("\n")

	return b.String()
}
