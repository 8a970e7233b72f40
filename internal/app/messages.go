package app

import "fmt"

// User-facing texts.
const (
	MsgCityNotFound  = "Kota tidak ditemukan di Indonesia."
	MsgGeocodeFailed = "Gagal mencari kota. Cek koneksi internet Anda."
	MsgWeatherFailed = "Gagal memuat data cuaca."
	MsgNoActiveCity  = "Silakan cari kota terlebih dahulu."
	MsgDuplicate     = "Kota sudah ada di favorit."
)

func msgAdded(name string) string {
	return fmt.Sprintf("%s ditambahkan ke favorit!", name)
}
