package tween

import (
	"log"
	"sort"
	"strings"

	"github.com/tanema/gween/ease"
)

// 缓动名称表，名称不区分大小写，可带 "Ease" 前缀（如 "EaseOutQuad"）
var easeByName = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"inquad":       ease.InQuad,
	"outquad":      ease.OutQuad,
	"inoutquad":    ease.InOutQuad,
	"incubic":      ease.InCubic,
	"outcubic":     ease.OutCubic,
	"inoutcubic":   ease.InOutCubic,
	"inquart":      ease.InQuart,
	"outquart":     ease.OutQuart,
	"inoutquart":   ease.InOutQuart,
	"inquint":      ease.InQuint,
	"outquint":     ease.OutQuint,
	"inoutquint":   ease.InOutQuint,
	"insine":       ease.InSine,
	"outsine":      ease.OutSine,
	"inoutsine":    ease.InOutSine,
	"inexpo":       ease.InExpo,
	"outexpo":      ease.OutExpo,
	"inoutexpo":    ease.InOutExpo,
	"incirc":       ease.InCirc,
	"outcirc":      ease.OutCirc,
	"inoutcirc":    ease.InOutCirc,
	"inback":       ease.InBack,
	"outback":      ease.OutBack,
	"inoutback":    ease.InOutBack,
	"inbounce":     ease.InBounce,
	"outbounce":    ease.OutBounce,
	"inoutbounce":  ease.InOutBounce,
	"inelastic":    ease.InElastic,
	"outelastic":   ease.OutElastic,
	"inoutelastic": ease.InOutElastic,
}

func normalizeEase(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "ease")
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
}

// LookupEase 按名称查找缓动函数
func LookupEase(name string) (ease.TweenFunc, bool) {
	fn, ok := easeByName[normalizeEase(name)]
	return fn, ok
}

// EaseByName 按名称查找缓动函数，空名称或未知名称返回线性缓动
// 未知名称会记录一条警告。
func EaseByName(name string) ease.TweenFunc {
	if strings.TrimSpace(name) == "" {
		return ease.Linear
	}
	fn, ok := LookupEase(name)
	if !ok {
		log.Printf("[Tween] Warning: unknown ease %q, falling back to Linear", name)
		return ease.Linear
	}
	return fn
}

// EaseNames 返回所有可用的缓动名称（规范化后的小写形式）
func EaseNames() []string {
	names := make([]string, 0, len(easeByName))
	for name := range easeByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
