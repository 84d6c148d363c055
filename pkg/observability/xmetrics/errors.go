package xmetrics

import "errors"

// ErrCreateInstrument 创建指标仪表失败
var ErrCreateInstrument = errors.New("xmetrics: create instrument failed")
