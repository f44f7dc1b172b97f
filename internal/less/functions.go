// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package less

import "math"

type function func(fn token, args []operand) (operand, error)

var functions = map[string]function{
	"lighten": func(fn token, args []operand) (operand, error) {
		return adjustLightness(fn, args, 1)
	},
	"darken": func(fn token, args []operand) (operand, error) {
		return adjustLightness(fn, args, -1)
	},
	"fade":       fade,
	"percentage": percentage,
}

func colorAndAmount(fn token, args []operand) ([4]float64, float64, error) {
	if len(args) != 2 {
		return [4]float64{}, 0, errorf(fn.pos, "%s) takes 2 arguments, got %d", fn.data, len(args))
	}
	if args[0].kind != colorOperand {
		return [4]float64{}, 0, errorf(fn.pos, "%s) expects a color as the first argument, got %q", fn.data, args[0].text)
	}
	if !args[1].numeric() {
		return [4]float64{}, 0, errorf(fn.pos, "%s) expects a number as the second argument, got %q", fn.data, args[1].text)
	}
	return args[0].rgba, args[1].num / 100, nil
}

func adjustLightness(fn token, args []operand, sign float64) (operand, error) {
	rgba, amount, err := colorAndAmount(fn, args)
	if err != nil {
		return operand{}, err
	}
	h, s, l := toHSL(rgba)
	l = clamp01(l + sign*amount)
	return color(fromHSL(h, s, l, rgba[3])), nil
}

func fade(fn token, args []operand) (operand, error) {
	rgba, amount, err := colorAndAmount(fn, args)
	if err != nil {
		return operand{}, err
	}
	rgba[3] = clamp01(amount)
	return color(rgba), nil
}

func percentage(fn token, args []operand) (operand, error) {
	if len(args) != 1 || !args[0].numeric() {
		return operand{}, errorf(fn.pos, "%s) expects a single number", fn.data)
	}
	return number(args[0].num*100, "%"), nil
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

// toHSL converts RGB channels to hue in degrees, saturation and lightness
// in [0, 1].
func toHSL(rgba [4]float64) (h, s, l float64) {
	r, g, b := rgba[0]/255, rgba[1]/255, rgba[2]/255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2
	d := max - min
	if d == 0 {
		return 0, 0, l
	}
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h * 60, s, l
}

func fromHSL(h, s, l, a float64) [4]float64 {
	h = math.Mod(h, 360) / 360
	var m2 float64
	if l <= 0.5 {
		m2 = l * (s + 1)
	} else {
		m2 = l + s - l*s
	}
	m1 := l*2 - m2
	hue := func(h float64) float64 {
		if h < 0 {
			h++
		} else if h > 1 {
			h--
		}
		switch {
		case h*6 < 1:
			return m1 + (m2-m1)*h*6
		case h*2 < 1:
			return m2
		case h*3 < 2:
			return m1 + (m2-m1)*(2.0/3-h)*6
		}
		return m1
	}
	return [4]float64{
		hue(h+1.0/3) * 255,
		hue(h) * 255,
		hue(h-1.0/3) * 255,
		a,
	}
}
