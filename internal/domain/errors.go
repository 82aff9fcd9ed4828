package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类，API 层据此映射 HTTP 状态码
type ErrorKind string

const (
	// KindValidation 输入参数不合法（HTTP 400）
	KindValidation ErrorKind = "validation"
	// KindUnknownSymbol 引用了不存在的品种（HTTP 404）
	KindUnknownSymbol ErrorKind = "unknown_symbol"
	// KindInvalidState 控制操作与当前模拟状态冲突（HTTP 409）
	KindInvalidState ErrorKind = "invalid_state"
	// KindTransientEnrichment 标题富化失败/超时，可重试，不影响模拟（HTTP 502）
	KindTransientEnrichment ErrorKind = "transient_enrichment"
	// KindFatal 引擎内部不变量被破坏，模拟必须停下（HTTP 500）
	KindFatal ErrorKind = "fatal"
)

// Error 携带分类的领域错误
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// E 构造分类错误
func E(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf 提取错误分类；非领域错误一律按 fatal 处理
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
