package activator

// Options carries a configuration-derived value of type T.
//
// Constructors receive it when a parameter was declared with OptionsOf:
//
//	func NewMailer(opts activator.Options[MailSettings]) *Mailer {
//	    return &Mailer{host: opts.Value().Host}
//	}
type Options[T any] interface {
	Value() *T
}

type options[T any] struct {
	value *T
}

// NewOptions wraps value in an Options. A nil value is replaced with a
// pointer to the zero T.
func NewOptions[T any](value *T) Options[T] {
	if value == nil {
		value = new(T)
	}
	return &options[T]{value: value}
}

func (o *options[T]) Value() *T {
	return o.value
}
