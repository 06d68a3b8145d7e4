package testutil

import "github.com/udisondev/bk7231calc/internal/crypto"

// Fixtures содержит предварительно сгенерированные тестовые данные
// для избежания дублирования в тестах.
var Fixtures = struct {
	// Известный фрагмент plaintext (12 байт, больше минимума обеих стратегий)
	Pattern []byte

	// Параметры шифрования синтетического образа
	Key       uint32
	Selectors crypto.Selectors
	Base      uint32

	// Смещение Pattern внутри 64-байтового образа
	Offset    int
	ImageSize int
}{
	Pattern:   []byte("HELLO_WORLD!"),
	Key:       0x12345678,
	Selectors: crypto.Selectors{crypto.Param(1), crypto.Disabled(), crypto.Param(2)},
	Base:      0x0,
	Offset:    0x20,
	ImageSize: 64,
}

// FixtureImage строит зашифрованный 64-байтовый образ: нули, Pattern по смещению Offset.
func FixtureImage() []byte {
	f := Fixtures
	plain := PlantPattern(make([]byte, f.ImageSize), f.Pattern, f.Offset)
	return MustEncryptImage(plain, f.Base, f.Selectors, f.Key)
}
