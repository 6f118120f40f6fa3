package metrics

import pkgerrors "github.com/threadline/threadline-backend/pkg/errors"

func codeOf(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}
