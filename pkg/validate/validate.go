package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"smart-campus/backend/internal/scheduler"
)

// 自定义校验标签
const (
	termTag    = "term"    // 学期代码：YYYY-fall | YYYY-spring | YYYY-summer
	weekdayTag = "weekday" // 星期：1-5 或 mon..fri / monday..friday
	clockTag   = "clock"   // 时间：HH:MM
)

var termPattern = regexp.MustCompile(`^\d{4}-(fall|spring|summer)$`)

var once sync.Once

// Register 将自定义规则注册到 gin 默认的 validator 引擎，可重复调用
func Register() error {
	var err error
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin 校验引擎不是 validator/v10")
			return
		}
		err = Attach(v)
	})
	return err
}

// Attach 在指定 validator 上注册自定义规则与 json 字段名
func Attach(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	if err := v.RegisterValidation(termTag, termValidation); err != nil {
		return err
	}
	if err := v.RegisterValidation(weekdayTag, weekdayValidation); err != nil {
		return err
	}
	return v.RegisterValidation(clockTag, clockValidation)
}

// ValidTerm 学期代码格式是否合法
func ValidTerm(s string) bool {
	return termPattern.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

func termValidation(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	return ok && ValidTerm(s)
}

func weekdayValidation(fl validator.FieldLevel) bool {
	switch f := fl.Field(); f.Kind() {
	case reflect.String:
		_, ok := scheduler.ParseWeekday(f.String())
		return ok
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scheduler.Weekday(f.Int()).Valid()
	default:
		return false
	}
}

func clockValidation(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := scheduler.ParseClock(s)
	return err == nil
}

// FieldErrors 将校验错误转为 字段 → 中文提示；非校验错误返回 nil
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

// Summary 将字段错误拼接为单行文本（字段名有序）
func Summary(err error) string {
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return err.Error()
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fields[k]
	}
	return strings.Join(parts, "; ")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case termTag:
		return "学期代码格式应为 YYYY-fall/spring/summer"
	case weekdayTag:
		return "星期必须为周一至周五"
	case clockTag:
		return "时间格式应为 HH:MM"
	case "min":
		return fmt.Sprintf("数量不能少于 %s", fe.Param())
	case "max":
		return fmt.Sprintf("数量不能超过 %s", fe.Param())
	case "dive", "unique":
		return "存在重复或非法元素"
	default:
		return "格式无效"
	}
}
