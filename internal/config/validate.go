package config

import (
	"errors"
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	valid *validator.Validate
	trans ut.Translator
)

func init() {
	valid = validator.New(validator.WithRequiredStructEnabled())
	// 错误信息中使用 mapstructure 键名，与配置文件/环境变量对应
	valid.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := valid.RegisterValidation("listen_addr", validateListenAddr); err != nil {
		panic(err)
	}

	locale := en.New()
	trans, _ = ut.New(locale, locale).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(valid, trans); err != nil {
		panic(err)
	}
	err := valid.RegisterTranslation("listen_addr", trans,
		func(tr ut.Translator) error {
			return tr.Add("listen_addr", "{0} must be a host:port listen address", true)
		},
		func(tr ut.Translator, fe validator.FieldError) string {
			msg, _ := tr.T("listen_addr", fe.Field())
			return msg
		},
	)
	if err != nil {
		panic(err)
	}
}

// validateListenAddr host:port，host 可以为空，端口 0 表示随机端口
func validateListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}

// ValidationError 配置校验失败，包含所有不合法的字段
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Fields, "; ")
}

// Validate 校验配置，错误信息已翻译为可读文本
func (c *AppConfig) Validate() error {
	err := valid.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range fieldErrors {
		ve.Fields = append(ve.Fields, namespace(fe)+": "+fe.Translate(trans))
	}
	return ve
}

// namespace AppConfig.metrics.retention_hours -> metrics.retention_hours
func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
