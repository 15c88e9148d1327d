package protocol

import (
	"qsusb-list/qwikswitch"
)

// DeviceToProtocol converts a cached qwikswitch.Device to a protocol Device.
// The decoded level and sensor reading are best effort: devices whose raw
// value cannot be decoded still travel with their raw Value intact.
func DeviceToProtocol(dev qwikswitch.Device, dimAdj float64) Device {
	proto := Device{
		ID:    dev.ID,
		Name:  dev.Name,
		Type:  dev.Type,
		Value: dev.Value,
		Time:  dev.Time,
		RSSI:  dev.RSSI,
	}

	if level, err := dev.Level(dimAdj); err == nil {
		proto.Level = &level
	}
	if reading, ok, err := qwikswitch.DecodeSensor(dev.Type, dev.Value, 1); ok && err == nil {
		proto.Reading = readingToProtocol(reading)
	}

	return proto
}

// DeviceFromProtocol converts a protocol Device back to a qwikswitch.Device.
// Only the raw gateway fields survive the round trip; Level and Reading are
// derived data and are dropped.
func DeviceFromProtocol(device Device) qwikswitch.Device {
	return qwikswitch.Device{
		ID:    device.ID,
		Name:  device.Name,
		Type:  device.Type,
		Value: device.Value,
		Time:  device.Time,
		RSSI:  device.RSSI,
	}
}

func readingToProtocol(reading qwikswitch.SensorReading) *SensorData {
	switch reading.Kind {
	case qwikswitch.SensorBool:
		on := reading.On
		return &SensorData{Kind: "bool", On: &on}
	case qwikswitch.SensorNumber:
		value := reading.Value
		return &SensorData{Kind: "number", Value: &value, Unit: reading.Unit}
	case qwikswitch.SensorTempHumidity:
		temperature := reading.Temperature
		humidity := reading.Humidity
		return &SensorData{
			Kind:        "temp_humidity",
			Temperature: &temperature,
			Humidity:    &humidity,
		}
	}
	return nil
}
