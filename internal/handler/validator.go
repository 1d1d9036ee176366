package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dushixiang/homedash/internal/metric"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator echo 请求参数校验器
type Validator struct {
	validate *validator.Validate
}

// NewValidator 创建校验器，错误信息中的字段名取 query/param 标签
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"query", "param", "json"} {
			if name := strings.Split(field.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Var 校验单个值
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// describe 将校验错误转换为可读信息
func describe(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "gte":
			messages = append(messages, fmt.Sprintf("%s 不能小于 %s", fe.Field(), fe.Param()))
		case "lte":
			messages = append(messages, fmt.Sprintf("%s 不能大于 %s", fe.Field(), fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s 长度不能超过 %s", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s 不合法", fe.Field()))
		}
	}
	return strings.Join(messages, ", ")
}

// bindHistoryQuery 解析历史查询参数，未传的参数使用默认值
func bindHistoryQuery(c echo.Context) (metric.HistoryQuery, error) {
	q := metric.HistoryQuery{
		Hours: metric.DefaultHours,
		Limit: metric.DefaultLimit,
	}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return q, errors.New("参数格式错误")
	}
	if err := c.Validate(&q); err != nil {
		return q, errors.New(describe(err))
	}
	return q, nil
}
