package xctx

import "context"

// WithCorrelationID 注入日志关联标识
//
// 关联标识每个入站请求只计算一次，写入后不再修改。
func WithCorrelationID(ctx context.Context, id string) (context.Context, error) {
	return withString(ctx, keyCorrelationID, id)
}

// CorrelationID 从 context 提取关联标识，不存在返回空字符串
func CorrelationID(ctx context.Context) string {
	return stringValue(ctx, keyCorrelationID)
}

// RequireCorrelationID 关联标识必须存在，缺失时返回 ErrMissingCorrelationID
func RequireCorrelationID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := CorrelationID(ctx)
	if v == "" {
		return "", ErrMissingCorrelationID
	}
	return v, nil
}
