package rag

import (
	"strings"

	"github.com/vhoang/troly/internal/intent"
)

// Canned answers for greeting and failure paths. The user always receives a
// polite Vietnamese reply, never a raw error.
const (
	answerHello = "Xin chào! 👋 Tôi là **Trợ lý ảo TBU**. Tôi có thể giúp bạn:\n\n" +
		"📅 **Tra cứu lịch công tác** - Hỏi: \"Hôm nay có lịch gì?\"\n" +
		"📰 **Tin tức & Thông báo** - Hỏi: \"Tin tức mới nhất\"\n" +
		"🏫 **Thông tin trường** - Hỏi: \"Trường có những ngành đào tạo gì?\"\n\n" +
		"Bạn cần hỗ trợ gì ạ?"

	answerThanks = "Không có gì ạ! 😊 Rất vui được hỗ trợ bạn. Nếu cần thêm thông tin gì, cứ hỏi tôi nhé!"

	answerFarewell = "Tạm biệt bạn! 👋 Hẹn gặp lại. Chúc bạn một ngày tốt lành!"

	answerIdentity = "Tôi là **Trợ lý ảo TBU** - chatbot hỗ trợ tra cứu thông tin của Trường Đại học Thái Bình. " +
		"Tôi có thể giúp bạn xem lịch công tác, tin tức, thông báo và các thông tin về nhà trường."

	answerCapability = "Tôi có thể hỗ trợ bạn:\n\n" +
		"📅 **Lịch công tác**: Tra cứu lịch họp, sự kiện theo ngày\n" +
		"📰 **Tin tức**: Xem tin tức mới nhất của trường\n" +
		"📢 **Thông báo**: Xem các thông báo quan trọng\n" +
		"🏫 **Thông tin trường**: Ngành đào tạo, tuyển sinh, liên hệ...\n\n" +
		"Hãy đặt câu hỏi, tôi sẽ cố gắng trả lời tốt nhất!"

	answerGreetingDefault = "Xin chào! Tôi là Trợ lý ảo TBU. Bạn cần hỗ trợ gì ạ?"
)

// Failure answers, chosen by failure class.
const (
	answerError = "Xin lỗi, có lỗi xảy ra khi xử lý câu hỏi của bạn. Vui lòng thử lại sau."

	answerTimeout = "Xin lỗi, yêu cầu mất quá nhiều thời gian. Vui lòng thử lại với câu hỏi ngắn hơn."
)

// No-context answers when retrieval comes back empty.
const (
	answerNoContextHelp = `📋 **Hướng dẫn sử dụng Trợ lý TBU**

Bạn có thể hỏi tôi về:

**Lịch công tác:**
• "Lịch công tác hôm nay"
• "Lịch tuần này"
• "Lịch của Hiệu trưởng"
• "Ngày mai có họp gì?"

**Tin tức & Thông báo:**
• "Tin tức mới nhất"
• "Thông báo quan trọng"

**Thông tin trường:**
• "Giới thiệu về trường"
• "Địa chỉ liên hệ"

Hãy đặt câu hỏi cụ thể để tôi có thể hỗ trợ tốt nhất!`

	answerNoContextDefault = `Xin lỗi, tôi không tìm thấy thông tin liên quan đến câu hỏi của bạn.

Bạn có thể thử:
• Hỏi cụ thể hơn (VD: "Lịch công tác ngày 22/01/2026")
• Hỏi về lịch công tác, tin tức, hoặc thông tin trường

Nếu cần hỗ trợ thêm, hãy gõ "giúp đỡ" để xem hướng dẫn.`
)

// greetingSubstrings route an unanswerable query back to the introduction.
// Checked as substrings of the whole question so a long message that embeds
// a greeting still gets the intro.
var greetingSubstrings = []string{"xin chào", "chào", "hello", "hi", "hey"}

// helpKeywords route an unanswerable query to the usage guide.
var helpKeywords = []string{"giúp", "trợ giúp", "help", "hướng dẫn", "làm gì"}

// greetingAnswer picks the canned reply for a greeting query.
func greetingAnswer(question string) string {
	switch intent.ClassifyGreeting(question) {
	case intent.GreetingHello:
		return answerHello
	case intent.GreetingThanks:
		return answerThanks
	case intent.GreetingFarewell:
		return answerFarewell
	case intent.GreetingIdentity:
		return answerIdentity
	case intent.GreetingCapability:
		return answerCapability
	default:
		return answerGreetingDefault
	}
}

// noContextAnswer picks the reply when retrieval found nothing. Greetings
// win over help requests, matching the introduction users get on plain
// "chào" messages.
func noContextAnswer(question string) string {
	lower := strings.ToLower(question)
	for _, g := range greetingSubstrings {
		if strings.Contains(lower, g) {
			return answerHello
		}
	}
	for _, kw := range helpKeywords {
		if strings.Contains(lower, kw) {
			return answerNoContextHelp
		}
	}
	return answerNoContextDefault
}
