package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable 表示网关暂时不可用，调用方可在下一轮重试。
	ErrUnavailable = errors.New("broker unavailable")
)

// IsUnavailable 判断错误是否属于网关不可用类别。
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// TradeError 表示终端拒绝了交易请求。
type TradeError struct {
	Retcode int
	Message string
}

func (e *TradeError) Error() string {
	return e.Message
}

// 返回码的英文文案与原有接口契约保持一致。
var retcodeMessages = map[int]string{
	RetcodeDone:   "Operation completed successfully",
	RetcodeReject: "Order rejected",
	10014:         "Volume value error",
	10015:         "Connection error",
	10016:         "Network error",
	10017:         "Server access error",
	10030:         "Invalid order filling type",
}

// TranslateRetcode 将交易返回码翻译为可读信息。
func TranslateRetcode(code int) string {
	if msg, ok := retcodeMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error with code %d", code)
}
