// Package watchlist holds the named stock lists a scan runs over.
package watchlist

import (
	"fmt"
	"sort"
	"strings"
)

// StockNames maps the built-in codes to their short names.
var StockNames = map[string]string{
	"600690": "海尔智家",
	"603516": "淳中科技",
	"601088": "中国神华",
	"510720": "红利国企ETF",
	"601985": "中国核电",
	"003816": "中国广核",
	"601066": "中信建投",
	"601398": "工商银行",
	"002142": "宁波银行",
	"600030": "中信证券",
	"601998": "中信银行",
	"600685": "中船防务",
	"600733": "北汽蓝谷",
	"000538": "云南白药",
	"600519": "贵州茅台",
	"000858": "五粮液",
	"600600": "青岛啤酒",
	"000333": "美的集团",
	"600900": "长江电力",
	"600886": "国投电力",
	"601728": "中国电信",
	"000651": "格力电器",
	"600887": "伊利股份",
	"600941": "中国移动",
	"600028": "中国石化",
	"601919": "中远海控",
	"601336": "新华保险",
	"601318": "中国平安",
	"600036": "招商银行",
}

// Builtin are the predefined lists.
var Builtin = map[string][]string{
	"default": {
		"600690", "603516", "601088", "510720", "601985", "003816", "601066", "601398", "002142", "600030",
		"601998", "600685", "600733", "000538", "600519", "000858", "600600", "000333", "600900", "600886",
		"601728", "000651", "600887", "600941", "600028", "601919", "601336", "601318", "600036",
	},
	"banking":         {"601398", "002142", "601998", "600036"},
	"securities":      {"601066", "600030"},
	"insurance":       {"601336", "601318"},
	"energy":          {"601088", "601985", "003816", "600900", "600886", "600028"},
	"technology":      {"603516", "601728", "600941"},
	"food_beverage":   {"000538", "600519", "000858", "600600", "600887"},
	"home_appliances": {"600690", "000333", "000651"},
	"transportation":  {"600685", "600733", "601919"},
	"etf":             {"510720"},
}

// Registry resolves watchlists by name. Configured lists override built-ins of the same name.
type Registry struct {
	lists map[string][]string
}

// New builds a registry from the built-ins plus extra lists.
func New(extra map[string][]string) *Registry {
	r := &Registry{lists: make(map[string][]string, len(Builtin)+len(extra))}
	for name, codes := range Builtin {
		r.lists[name] = codes
	}
	for name, codes := range extra {
		r.lists[strings.ToLower(strings.TrimSpace(name))] = normalize(codes)
	}
	return r
}

func normalize(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Get returns a copy of the named list.
func (r *Registry) Get(name string) ([]string, error) {
	codes, ok := r.lists[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("watchlist %q not found, available: %s", name, strings.Join(r.Names(), ", "))
	}
	return append([]string(nil), codes...), nil
}

// Names lists the watchlist names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.lists))
	for name := range r.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every distinct code across all lists, sorted.
func (r *Registry) All() []string {
	seen := map[string]bool{}
	for _, codes := range r.lists {
		for _, c := range codes {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Label returns "code name" for known codes and the bare code otherwise.
func Label(code string) string {
	if name, ok := StockNames[code]; ok {
		return code + " " + name
	}
	return code
}
