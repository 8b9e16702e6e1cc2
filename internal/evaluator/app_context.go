package evaluator

import (
	"ksx/internal/object"
	"ksx/internal/output"
)

// NewAppContext builds the host capability layer scripts resolve names
// against: the Output console, delay and the banned process controls.
func NewAppContext(sink output.Sink) *object.Map {
	if sink == nil {
		sink = output.Discard
	}
	app := object.NewMap()
	app.Set("Output", outputObject(sink))
	app.Set("delay", &object.Builtin{
		Name: "delay",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(args) != 1 {
				return nil, newError("wrong number of arguments. got=%d, want=1",
					len(args))
			}
			return object.UNDEFINED, sleep(ctx, object.ToNumber(args[0]))
		},
	})
	app.Set("exit", BannedBuiltin("exit", "A script ends when its last statement completes or when it is stopped."))
	return app
}

// BannedBuiltin registers a name scripts may see but never call.
func BannedBuiltin(name, help string) *object.Builtin {
	return &object.Builtin{
		Name:   name,
		Banned: true,
		Help:   help,
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.UNDEFINED, nil
		},
	}
}

func outputObject(sink output.Sink) *object.Map {
	text := func(write func(string)) *object.Builtin {
		return &object.Builtin{
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				s := ""
				for _, a := range args {
					s += displayString(a)
				}
				write(s)
				return object.UNDEFINED, nil
			},
		}
	}
	flag := func(set func(bool)) *object.Builtin {
		return &object.Builtin{
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				on := len(args) == 0 || object.IsTruthy(args[0])
				set(on)
				return object.UNDEFINED, nil
			},
		}
	}
	color := func(set func(string)) *object.Builtin {
		return &object.Builtin{
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				if len(args) != 1 {
					return nil, newError("wrong number of arguments. got=%d, want=1",
						len(args))
				}
				set(object.ToString(args[0]))
				return object.UNDEFINED, nil
			},
		}
	}
	action := func(do func()) *object.Builtin {
		return &object.Builtin{
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				do()
				return object.UNDEFINED, nil
			},
		}
	}

	return newObject(map[string]*object.Builtin{
		"write":         text(sink.Write),
		"writeLine":     text(sink.WriteLine),
		"color":         color(sink.Color),
		"bgColor":       color(sink.Background),
		"bold":          flag(sink.Bold),
		"italic":        flag(sink.Italic),
		"underline":     flag(sink.Underline),
		"strikethrough": flag(sink.Strike),
		"pushStyle":     action(sink.PushStyle),
		"popStyle":      action(sink.PopStyle),
		"resetStyle":    action(sink.ResetStyle),
	})
}
