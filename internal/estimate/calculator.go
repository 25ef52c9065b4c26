// Package estimate считает агрегат раунда покер-планирования.
package estimate

import (
	"math"
	"strconv"

	"github.com/cwrk-planet/poker-service/internal/domain"
)

// Оценочная шкала. Порядок важен: при равных расстояниях выигрывает
// более ранний (меньший) элемент.
var scale = [...]float64{1, 2, 3, 5, 8}

// Compute — чистая функция: голоса -> результат раунда.
// Avg — среднее, прижатое к ближайшему значению шкалы; Min/Max считаются
// до прижатия; Ratio — процент голосов, точно совпавших с прижатым Avg.
// Пустой и полностью нечисловой набор голосов даёт нулевой результат
// (деление на ноль здесь не проносим дальше).
func Compute(votes []string) domain.Result {
	vals := make([]float64, 0, len(votes))
	for _, v := range votes {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		vals = append(vals, f)
	}
	if len(vals) == 0 {
		return domain.Result{}
	}

	var sum float64
	min, max := vals[0], vals[0]
	for _, f := range vals {
		sum += f
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	raw := sum / float64(len(vals))

	avg := scale[0]
	for _, c := range scale[1:] {
		if math.Abs(c-raw) < math.Abs(avg-raw) {
			avg = c
		}
	}

	agreed := 0
	for _, f := range vals {
		if f == avg {
			agreed++
		}
	}

	return domain.Result{
		Avg:   avg,
		Min:   min,
		Max:   max,
		Ratio: float64(agreed) / float64(len(vals)) * 100,
	}
}
