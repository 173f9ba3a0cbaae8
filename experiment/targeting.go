package experiment

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("user_id", cel.StringType),
			cel.Variable("experiment", cel.StringType),
			cel.Variable("profile", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Audience 是编译后的受众圈选规则，使用 CEL (Common Expression Language) 表达。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：user_id.startsWith("beta_")
//   - 画像：profile.experience == "beginner" / profile.age >= 18.0
//   - 逻辑：profile.domain == "data" && user_id != "u0"
//
// 表达式在实验注册时编译一次，之后每次分桶评估复用编译结果。
type Audience struct {
	Expr string
	prg  cel.Program
}

// NewAudience 编译受众规则。表达式为空时返回 nil（不圈选，全量受众）。
func NewAudience(expr string) (*Audience, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile audience rule: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("audience program: %w", err)
	}

	return &Audience{Expr: expr, prg: prg}, nil
}

// Eligible 评估用户是否符合受众条件。
// profile 可为 nil（表达式访问缺失 key 会报错，规则应自带存在性判断）。
func (a *Audience) Eligible(userID, experiment string, profile map[string]any) (bool, error) {
	if profile == nil {
		profile = map[string]any{}
	}
	out, _, err := a.prg.Eval(map[string]any{
		"user_id":    userID,
		"experiment": experiment,
		"profile":    profile,
	})
	if err != nil {
		return false, fmt.Errorf("eval audience rule: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("audience rule must return boolean, got %T", out.Value())
	}
	return result, nil
}
