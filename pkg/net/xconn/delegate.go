package xconn

// DelegateKind 内层处理器的种类
type DelegateKind uint8

const (
	// DelegateNone 没有内层处理器，拦截器直接转发
	DelegateNone DelegateKind = iota
	// DelegateHandler 拦截器把回调交给内层处理器
	DelegateHandler
)

func (k DelegateKind) String() string {
	if k == DelegateHandler {
		return "handler"
	}
	return "none"
}

// Delegate 拦截器内层处理器的标签变体：None 或 Wrap(h)
//
// 零值等价于 None()。
type Delegate struct {
	kind    DelegateKind
	handler Handler
}

// None 不带内层处理器
func None() Delegate {
	return Delegate{kind: DelegateNone}
}

// Wrap 带内层处理器，h 为 nil 时等价于 None()
func Wrap(h Handler) Delegate {
	if h == nil {
		return None()
	}
	return Delegate{kind: DelegateHandler, handler: h}
}

// Kind 返回变体种类
func (d Delegate) Kind() DelegateKind {
	return d.kind
}

// Handler 返回内层处理器，DelegateNone 时第二个返回值为 false
func (d Delegate) Handler() (Handler, bool) {
	return d.handler, d.kind == DelegateHandler
}
