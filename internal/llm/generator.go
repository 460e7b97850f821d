package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/vhoang/troly/internal/log"
)

// systemPrompt instructs the model in Vietnamese. The answer must stay
// grounded in the supplied context block.
const systemPrompt = `Bạn là Trợ lý ảo TBU - chatbot hỗ trợ tra cứu thông tin cho Trường Đại học Thái Bình.

NHIỆM VỤ CỦA BẠN:
1. Trả lời câu hỏi DỰA TRÊN thông tin trong CONTEXT được cung cấp
2. Nếu thông tin KHÔNG CÓ trong CONTEXT, hãy nói rõ là bạn không có thông tin đó
3. Trả lời ngắn gọn, chính xác, thân thiện và chuyên nghiệp
4. Sử dụng format markdown khi cần (bold, bullet points, numbered list)
5. LUÔN trả lời bằng tiếng Việt

HƯỚNG DẪN TRẢ LỜI VỀ LỊCH CÔNG TÁC:
- Khi có lịch: Liệt kê ĐẦY ĐỦ thông tin theo format:
  • **Thời gian**: [giờ bắt đầu - giờ kết thúc]
  • **Nội dung**: [mô tả hoạt động]
  • **Địa điểm**: [nơi diễn ra]
  • **Chủ trì**: [người chủ trì]
  • **Thành phần**: [ai tham dự]
- Khi KHÔNG có lịch: Trả lời rõ ràng "Không có lịch công tác vào [thời gian]"
- Nếu có nhiều lịch, liệt kê theo thứ tự thời gian

HƯỚNG DẪN TRẢ LỜI KHÁC:
- Về TIN TỨC/THÔNG BÁO: Tóm tắt nội dung chính, nêu ngày đăng
- Về THÔNG TIN TRƯỜNG: Cung cấp thông tin chính xác từ context

LƯU Ý QUAN TRỌNG:
- KHÔNG bịa đặt thông tin không có trong context
- Nếu không chắc chắn, nói "Theo thông tin tôi có..."
- Nếu context rỗng hoặc không liên quan, thông báo không tìm thấy thông tin
- Chú ý ngày hiện tại khi trả lời về "hôm nay", "ngày mai", etc.`

// maxHistoryMessages bounds how much conversation history reaches the model.
const maxHistoryMessages = 4

// ContextDoc is one retrieved document handed to the generator.
type ContextDoc struct {
	Content    string
	SourceType string
	Score      float64
}

// Message is one turn of prior conversation. Role "user" is the person;
// anything else is treated as the assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything one generation needs.
type Request struct {
	Question    string
	Context     []ContextDoc
	History     []Message
	DateContext string // "Hôm nay là ...", empty outside schedule queries
}

// Generator produces grounded answers through Genkit.
type Generator struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    log.Logger
}

// NewGenerator creates a Generator. modelName is provider-qualified
// ("ollama/qwen2.5:7b").
func NewGenerator(g *genkit.Genkit, modelName string, timeout time.Duration, logger log.Logger) *Generator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{g: g, modelName: modelName, timeout: timeout, logger: logger}
}

// Generate answers the question from the supplied context. The error is
// context.DeadlineExceeded-wrapping on timeout so callers can map it to a
// distinct user-facing message.
func (gen *Generator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gen.timeout)
	defer cancel()

	msgs := historyMessages(req.History)
	msgs = append(msgs, ai.NewUserTextMessage(buildUserPrompt(req)))

	start := time.Now()
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithSystem(systemPrompt),
		ai.WithMessages(msgs...),
		ai.WithModelName(gen.modelName),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("generation timeout after %s: %w", gen.timeout, err)
		}
		return "", fmt.Errorf("generating answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", errors.New("empty response from model")
	}

	gen.logger.Debug("generated answer",
		"model", gen.modelName,
		"context_docs", len(req.Context),
		"answer_length", len(answer),
		"duration", time.Since(start))
	return answer, nil
}

// historyMessages converts the last turns of conversation, mapping the
// legacy "bot" role to the model role.
func historyMessages(history []Message) []*ai.Message {
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	msgs := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == "user" {
			msgs = append(msgs, ai.NewUserTextMessage(m.Content))
		} else {
			msgs = append(msgs, ai.NewModelTextMessage(m.Content))
		}
	}
	return msgs
}

// buildUserPrompt assembles the numbered context block, the optional date
// line and the question into the final user message.
func buildUserPrompt(req Request) string {
	contextStr := "Không có thông tin liên quan."
	if len(req.Context) > 0 {
		blocks := make([]string, len(req.Context))
		for i, doc := range req.Context {
			blocks[i] = fmt.Sprintf("[%d] (Nguồn: %s, Độ liên quan: %.2f)\n%s",
				i+1, doc.SourceType, doc.Score, doc.Content)
		}
		contextStr = strings.Join(blocks, "\n\n---\n\n")
	}

	dateContext := ""
	if req.DateContext != "" {
		dateContext = "\n\n📅 NGÀY HIỆN TẠI: " + req.DateContext + "\n"
	}

	return fmt.Sprintf(`CONTEXT (Thông tin liên quan):
%s
%s
---

CÂU HỎI CỦA NGƯỜI DÙNG: %s

Hãy trả lời câu hỏi dựa trên thông tin trong CONTEXT ở trên. Nếu không có thông tin liên quan, hãy nói rõ.`,
		contextStr, dateContext, req.Question)
}
