package cv

import (
	"image"
	"testing"
)

func TestNearSolidBlack(t *testing.T) {
	t.Run("black frame", func(t *testing.T) {
		img := fillRGBA(200, 150, 0, 0, 0)

		if !NearSolidBlack(img) {
			t.Error("Expected all-black frame to be rejected as solid black")
		}
	})

	t.Run("noise floor frame", func(t *testing.T) {
		img := fillRGBA(200, 150, 2, 2, 2)

		if !NearSolidBlack(img) {
			t.Error("Expected noise-floor frame to count as solid black")
		}
	})

	t.Run("content frame", func(t *testing.T) {
		img := fillRGBA(200, 150, 90, 120, 60)

		if NearSolidBlack(img) {
			t.Error("Expected lit frame to pass")
		}
	})

	t.Run("dark frame with highlights", func(t *testing.T) {
		// Mostly black, but enough bright pixels to stretch the range.
		img := fillRGBA(100, 100, 0, 0, 0)
		for x := 0; x < 100; x++ {
			idx := x * 4
			img.Pix[idx] = 255
			img.Pix[idx+1] = 255
			img.Pix[idx+2] = 255
		}

		if NearSolidBlack(img) {
			t.Error("Frame with real highlights should not count as solid black")
		}
	})

	t.Run("nil image", func(t *testing.T) {
		if !NearSolidBlack(nil) {
			t.Error("Expected nil image to count as solid black")
		}
	})

	t.Run("empty image", func(t *testing.T) {
		if !NearSolidBlack(image.NewRGBA(image.Rect(0, 0, 0, 0))) {
			t.Error("Expected empty image to count as solid black")
		}
	})
}

func TestLowContrastDark(t *testing.T) {
	t.Run("uniform dim frame", func(t *testing.T) {
		img := fillRGBA(128, 128, 30, 30, 30)

		if !LowContrastDark(img) {
			t.Error("Expected uniform dim frame to be low contrast")
		}
	})

	t.Run("bright frame", func(t *testing.T) {
		img := fillRGBA(128, 128, 150, 150, 150)

		if LowContrastDark(img) {
			t.Error("Expected bright frame to pass")
		}
	})

	t.Run("dark but ranged frame", func(t *testing.T) {
		// Mean stays under 40 but the range exceeds 18.
		img := fillRGBA(100, 100, 20, 20, 20)
		for x := 0; x < 100; x++ {
			for y := 0; y < 10; y++ {
				idx := y*img.Stride + x*4
				img.Pix[idx] = 60
				img.Pix[idx+1] = 60
				img.Pix[idx+2] = 60
			}
		}

		if LowContrastDark(img) {
			t.Error("Frame with real dynamic range should pass")
		}
	})

	t.Run("nil image", func(t *testing.T) {
		if !LowContrastDark(nil) {
			t.Error("Expected nil image to count as low contrast")
		}
	})
}

func BenchmarkNearSolidBlack(b *testing.B) {
	img := fillRGBA(1920, 1080, 40, 55, 30)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		NearSolidBlack(img)
	}
}
