// Package journeys 以状态机方式回放脚本化的用户旅程
package journeys

import "fmt"

// State 旅程状态
type State int

const (
	StateStart State = iota
	StateNavigateHome
	StateFindProduct
	StateShopFallback
	StateRetryFindProduct
	StateNavigateProduct
	StateSelectSize
	StateAddToCart
	StateNavigateCart
	StateVerifyCart

	// 终止状态
	StatePass
	StateWarn
	StateFail
)

var stateNames = map[State]string{
	StateStart:            "Start",
	StateNavigateHome:     "NavigateHome",
	StateFindProduct:      "FindProduct",
	StateShopFallback:     "ShopFallback",
	StateRetryFindProduct: "RetryFindProduct",
	StateNavigateProduct:  "NavigateProduct",
	StateSelectSize:       "SelectSize",
	StateAddToCart:        "AddToCart",
	StateNavigateCart:     "NavigateCart",
	StateVerifyCart:       "VerifyCart",
	StatePass:             "Pass",
	StateWarn:             "Warn",
	StateFail:             "Fail",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StatePass || s == StateWarn || s == StateFail
}

// Event 步骤执行结果
// 步骤出错不走转移表,直接以错误文本失败
type Event int

const (
	EventOK       Event = iota // 步骤完成
	EventNotFound              // 目标元素不存在或不可见
)

func (e Event) String() string {
	if e == EventNotFound {
		return "NotFound"
	}
	return "OK"
}

// 终止状态附带的原因
const (
	ReasonNoProducts  = "No Products Found"
	ReasonNoAddButton = "No Add Button"
	ReasonCartEmpty   = "Cart appears empty after add"
)

type transition struct {
	next   State
	reason string
}

type transitionKey struct {
	state State
	event Event
}

// transitions 旅程转移表
var transitions = map[transitionKey]transition{
	{StateStart, EventOK}:                  {next: StateNavigateHome},
	{StateNavigateHome, EventOK}:           {next: StateFindProduct},
	{StateFindProduct, EventOK}:            {next: StateNavigateProduct},
	{StateFindProduct, EventNotFound}:      {next: StateShopFallback},
	{StateShopFallback, EventOK}:           {next: StateRetryFindProduct},
	{StateRetryFindProduct, EventOK}:       {next: StateNavigateProduct},
	{StateRetryFindProduct, EventNotFound}: {next: StateFail, reason: ReasonNoProducts},
	{StateNavigateProduct, EventOK}:        {next: StateSelectSize},
	{StateSelectSize, EventOK}:             {next: StateAddToCart},
	{StateAddToCart, EventOK}:              {next: StateNavigateCart},
	{StateAddToCart, EventNotFound}:        {next: StateWarn, reason: ReasonNoAddButton},
	{StateNavigateCart, EventOK}:           {next: StateVerifyCart},
	{StateVerifyCart, EventOK}:             {next: StatePass},
	{StateVerifyCart, EventNotFound}:       {next: StateFail, reason: ReasonCartEmpty},
}

// Next 查表得到下一个状态和终止原因
func Next(s State, e Event) (State, string, error) {
	t, ok := transitions[transitionKey{s, e}]
	if !ok {
		return StateFail, "", fmt.Errorf("状态 %s 不接受事件 %s", s, e)
	}
	return t.next, t.reason, nil
}
