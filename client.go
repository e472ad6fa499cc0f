package bmh

import "fmt"

// Client is the interface that groups the Packager and Transporter methods.
// Calls must not overlap: every operation is one request and one response.
type Client struct {
	packager    Packager
	transporter Transporter
}

// NewClient creates a new BMH05102 client with given backend handler.
func NewClient(handler *ClientHandler) *Client {
	return &Client{
		packager:    handler,
		transporter: handler,
	}
}

//send 发送命令并校验应答
func (c *Client) send(code byte, data []byte) (*ProtocolDataUnit, error) {
	adu, err := c.packager.Encode(&ProtocolDataUnit{
		Command: code,
		Data:    data,
	})
	if err != nil {
		return nil, err
	}
	response, err := c.transporter.Send(adu, commands[code].responseLength)
	if err != nil {
		return nil, err
	}
	if err = c.packager.Verify(adu, response); err != nil {
		return nil, err
	}
	return c.packager.Decode(response)
}

//进入阻抗测量模式
//模块应答状态字节回显 0x03 表示成功
func (c *Client) EnterImpedanceMode() error {
	pdu, err := c.send(CommandImpedanceMode, []byte{impedanceModeOn})
	if err != nil {
		return err
	}
	if pdu.Status != impedanceModeOn {
		return &DeviceError{Command: CommandImpedanceMode, Code: pdu.Status}
	}
	return nil
}

const impedanceModeOn = 0x03

//查询状态获取阻抗数据
func (c *Client) QueryStatus() (ImpedanceStatus, error) {
	pdu, err := c.send(CommandStatus, []byte{0x00})
	if err != nil {
		return ImpedanceStatus{}, err
	}
	return DecodeStatus(pdu)
}

//人体成分计算
//impedance 为查询状态得到的原始阻抗
func (c *Client) BodyComposition(profile UserProfile, impedance uint16) (*BodyComposition, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if impedance == 0 || impedance >= 0xFFF0 {
		return nil, fmt.Errorf("%w: impedance 0x%04X", ErrInvalidInput, impedance)
	}
	pdu, err := c.send(CommandComposition, EncodeComposition(profile, impedance))
	if err != nil {
		return nil, err
	}
	return DecodeComposition(pdu, profile)
}

//人体成分等级判断
func (c *Client) Levels() (*LevelReport, error) {
	pdu, err := c.send(CommandLevels, nil)
	if err != nil {
		return nil, err
	}
	return DecodeLevels(pdu)
}

//读取当前测量模式
func (c *Client) ReadMode() (Mode, error) {
	pdu, err := c.send(CommandParameter, parameterFrame(parameterRead, parameterMode, 0))
	if err != nil {
		return FootMode, err
	}
	return decodeMode(pdu)
}

//设置双手/双脚测量模式
func (c *Client) SetMode(mode Mode) error {
	if mode != HandMode && mode != FootMode {
		return fmt.Errorf("%w: mode %d", ErrInvalidInput, byte(mode))
	}
	pdu, err := c.send(CommandParameter, parameterFrame(parameterWrite, parameterMode, byte(mode)))
	if err != nil {
		return err
	}
	if pdu.Status != 0 {
		return &DeviceError{Command: CommandParameter, Code: pdu.Status}
	}
	return nil
}
