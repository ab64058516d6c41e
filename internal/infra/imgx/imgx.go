package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // 注册 GIF 解码器（部分站点的占位图是 gif）
	"image/jpeg"
	_ "image/png"
)

// 小于这个尺寸的图片视为站点返回的占位/追踪像素，而不是真正的海报。
const minSide = 64

// Info 是对下载结果的最小校验信息。
type Info struct {
	Format string
	Width  int
	Height int
}

// Validate 只解码头部，确认数据是可识别的图片且尺寸合理。
func Validate(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, errors.New("图片为空")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("无法识别的图片：%w", err)
	}
	if cfg.Width < minSide || cfg.Height < minSide {
		return Info{}, fmt.Errorf("图片尺寸过小：%dx%d", cfg.Width, cfg.Height)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ToJPEG 把任意可解码图片转成 JPEG；本来就是 JPEG 时原样返回。
func ToJPEG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format == "jpeg" {
		return data, nil
	}
	return encode(img)
}

// PosterFromFanartJPEG 从 fanart 中裁出居中的 2:3 区域作为 poster。
//
// 约束：
// - 输入允许是 JPEG/PNG/GIF
// - 输出固定为 JPEG
// - fanart 比 2:3 更“瘦”时改为裁高度
func PosterFromFanartJPEG(fanart []byte) ([]byte, error) {
	if len(fanart) == 0 {
		return nil, errors.New("fanart 为空")
	}

	img, _, err := image.Decode(bytes.NewReader(fanart))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	w, h := b.Dy()*2/3, b.Dy()
	if w > b.Dx() {
		w, h = b.Dx(), b.Dx()*3/2
	}
	if w <= 0 || h <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	srcRect := image.Rect(x0, y0, x0+w, y0+h)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, srcRect.Min, draw.Src)
	return encode(dst)
}

// Placeholder 生成纯色占位图：poster 400x600，fanart 1280x720。
func Placeholder(poster bool) []byte {
	w, h := 1280, 720
	if poster {
		w, h = 400, 600
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{R: 48, G: 48, B: 48, A: 255}}, image.Point{}, draw.Src)
	out, err := encode(dst)
	if err != nil {
		// 纯色 RGBA 编码不会失败；真失败了说明运行环境有问题。
		panic(err)
	}
	return out
}

func encode(img image.Image) ([]byte, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
