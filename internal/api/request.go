package api

import (
	"net"
	"net/http"
	"strings"
)

// 文档注释：获取客户端 IP（仅用于日志关联）
// 背景：多层代理环境下优先常见反向代理头，最后回退远端地址。
// 约束：头部可被伪造，不参与任何判定。
func clientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return x
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
