package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Duration 配置中的时间长度
//
// JSON 中写作 "250ms"、"5s"，数字按纳秒解释；null 与空串表示 0，
// 对超时类字段即"不启用"。
type Duration time.Duration

// UnmarshalJSON 解析字符串或纳秒数
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s: want string like \"100ms\" or nanoseconds", data)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON 输出 "1.5s" 形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Duration 转为 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Or 非正值时返回 def
func (d Duration) Or(def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return time.Duration(d)
}

// Milliseconds 以毫秒计，ARQ 引擎的时间单位
func (d Duration) Milliseconds() int {
	return int(time.Duration(d) / time.Millisecond)
}

func (d Duration) String() string { return time.Duration(d).String() }
